package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/email"
	"github.com/teskapnj/book-container/internal/models"
	"github.com/teskapnj/book-container/internal/services"
	"github.com/teskapnj/book-container/internal/utils"
)

// TaskType defines the type of a background task.
const (
	TypeSubmissionReceived = "listing:submission:received"
	TypeDecisionNotice     = "listing:decision:notice"
	TypeDraftCleanup       = "draft:cleanup"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	})
}

// ListingTaskPayload carries the listing reference for notification tasks.
type ListingTaskPayload struct {
	ListingID string `json:"listing_id"`
}

// Notifier enqueues listing notification tasks. It satisfies
// services.ISubmissionNotifier.
type Notifier struct {
	client *asynq.Client
}

// NewNotifier creates a Notifier around an asynq client.
func NewNotifier(client *asynq.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) enqueue(ctx context.Context, taskType string, listingID utils.SixID) error {
	payload, err := json.Marshal(ListingTaskPayload{ListingID: listingID.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, payload)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue("default"), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("failed to enqueue %s task: %w", taskType, err)
	}
	return nil
}

// NotifySubmissionReceived queues the new-submission notification.
func (n *Notifier) NotifySubmissionReceived(ctx context.Context, listing *models.Listing) error {
	return n.enqueue(ctx, TypeSubmissionReceived, listing.ID)
}

// NotifyDecision queues the moderation decision notification.
func (n *Notifier) NotifyDecision(ctx context.Context, listingID utils.SixID) error {
	return n.enqueue(ctx, TypeDecisionNotice, listingID)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor holds the dependencies the task handlers need.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	listingService services.IListingService
	rdb            *redis.Client
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	listingService services.IListingService,
	rdb *redis.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		listingService: listingService,
		rdb:            rdb,
	}
}

// SetupServer configures an Asynq server and the mux with every task
// handler registered. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSubmissionReceived, processor.HandleSubmissionReceivedTask)
	mux.HandleFunc(TypeDecisionNotice, processor.HandleDecisionNoticeTask)
	mux.HandleFunc(TypeDraftCleanup, processor.HandleDraftCleanupTask)
	log.Println("Registered background task handlers.")

	return srv, mux
}

// SetupScheduler configures the periodic draft cleanup. The caller runs it.
func SetupScheduler(rdb *redis.Client) *asynq.Scheduler {
	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}, nil)

	if _, err := scheduler.Register("@every 6h", asynq.NewTask(TypeDraftCleanup, nil), asynq.Queue("low")); err != nil {
		log.Fatalf("Could not register draft cleanup schedule: %v", err)
	}
	return scheduler
}

// --- Task Handlers ---

func (p *TaskProcessor) loadListing(ctx context.Context, t *asynq.Task) (*models.Listing, error) {
	var payload ListingTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	listingID, err := utils.ParseSixID(payload.ListingID)
	if err != nil {
		return nil, fmt.Errorf("invalid listing ID %q in payload: %w", payload.ListingID, asynq.SkipRetry)
	}
	listing, err := p.listingService.FindByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing %s no longer exists: %w", payload.ListingID, asynq.SkipRetry)
		}
		return nil, fmt.Errorf("failed to load listing %s: %w", payload.ListingID, err)
	}
	return listing, nil
}

// buildRawMessage assembles a plain-text email with headers.
func (p *TaskProcessor) buildRawMessage(to, subject, body string) []byte {
	from := p.cfg.SmtpFromAddress
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// HandleSubmissionReceivedTask emails the moderation inbox about a new
// pending listing.
func (p *TaskProcessor) HandleSubmissionReceivedTask(ctx context.Context, t *asynq.Task) error {
	listing, err := p.loadListing(ctx, t)
	if err != nil {
		return err
	}

	if p.cfg.AdminEmail == "" {
		log.Println("ADMIN_EMAIL not configured, skipping submission notification.")
		return nil
	}

	subject := fmt.Sprintf("New listing pending review: %s", listing.Title)
	body := fmt.Sprintf(
		"Vendor %s (%s) submitted %q.\n\nItems: %d\nTotal value: $%.2f\nListing ID: %s\n",
		listing.VendorName, listing.VendorID, listing.Title,
		listing.TotalItems, listing.TotalValue, listing.ID.String(),
	)

	if err := p.emailSender.Send(ctx, []string{p.cfg.AdminEmail}, subject, p.buildRawMessage(p.cfg.AdminEmail, subject, body)); err != nil {
		return fmt.Errorf("failed to send submission notification: %w", err)
	}
	log.Printf("Submission notification sent for listing %s", listing.ID.String())
	return nil
}

// HandleDecisionNoticeTask emails the vendor who submitted the listing
// about the moderation outcome.
func (p *TaskProcessor) HandleDecisionNoticeTask(ctx context.Context, t *asynq.Task) error {
	listing, err := p.loadListing(ctx, t)
	if err != nil {
		return err
	}

	if listing.Status == models.StatusPending {
		// Enqueued before the decision landed; retry later.
		return fmt.Errorf("listing %s still pending, decision notice premature", listing.ID.String())
	}

	if listing.VendorEmail == "" {
		log.Printf("Listing %s has no vendor email, skipping decision notification.", listing.ID.String())
		return nil
	}

	subject := fmt.Sprintf("Your listing was %s: %s", listing.Status, listing.Title)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\nYour listing %q was %s.\n", listing.VendorName, listing.Title, listing.Status)
	if listing.RejectionReason != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", listing.RejectionReason)
	}
	if listing.AdminNotes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", listing.AdminNotes)
	}

	if err := p.emailSender.Send(ctx, []string{listing.VendorEmail}, subject, p.buildRawMessage(listing.VendorEmail, subject, sb.String())); err != nil {
		return fmt.Errorf("failed to send decision notification: %w", err)
	}
	log.Printf("Decision notification sent to vendor for listing %s", listing.ID.String())
	return nil
}

// HandleDraftCleanupTask removes drafts whose saved_at is past the TTL.
// Redis expiry already covers the normal path; this sweep catches drafts
// written before a TTL change.
func (p *TaskProcessor) HandleDraftCleanupTask(ctx context.Context, t *asynq.Task) error {
	if p.rdb == nil {
		return nil
	}

	var removed int
	iter := p.rdb.Scan(ctx, 0, "bundle_draft:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := p.rdb.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var record services.DraftRecord
		if err := json.Unmarshal(data, &record); err != nil {
			log.Printf("WARN: dropping undecodable draft %s: %v", key, err)
			p.rdb.Del(ctx, key)
			removed++
			continue
		}
		if time.Since(record.SavedAt) > p.cfg.DraftTTL {
			p.rdb.Del(ctx, key)
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("draft cleanup scan failed: %w", err)
	}
	if removed > 0 {
		log.Printf("Draft cleanup removed %d stale drafts", removed)
	}
	return nil
}
