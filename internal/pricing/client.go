package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/teskapnj/book-container/internal/config"
	"github.com/teskapnj/book-container/internal/models"
)

// ILookupClient defines the interface for the external catalog/pricing lookup.
type ILookupClient interface {
	Lookup(ctx context.Context, code string) (*models.ProductSnapshot, *models.PricingDecision, error)
}

// lookupRequest is the body sent to the catalog endpoint.
type lookupRequest struct {
	Code string `json:"isbn"`
}

// lookupEnvelope is the expected structure from the catalog endpoint.
type lookupEnvelope struct {
	Success bool `json:"success"`
	Data    *struct {
		Product *models.ProductSnapshot `json:"product"`
		Pricing *models.PricingDecision `json:"pricing"`
		Message string                  `json:"message"`
	} `json:"data"`
	Error string `json:"error"`
}

// lookupClient implements ILookupClient.
type lookupClient struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewLookupClient creates a new catalog lookup client.
func NewLookupClient(cfg *config.Config) ILookupClient {
	return &lookupClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.CatalogTimeout},
	}
}

// Lookup calls the catalog endpoint for a scanned code. A nil error means
// the catalog serviced the lookup: the decision's Accepted flag says
// whether the item was priced, and a rejection carries its vendor-facing
// message. Errors are transport or protocol failures only.
func (c *lookupClient) Lookup(ctx context.Context, code string) (*models.ProductSnapshot, *models.PricingDecision, error) {
	if c.cfg.CatalogCheckURL == "" {
		return nil, nil, fmt.Errorf("catalog lookup URL not configured")
	}

	jsonData, _ := json.Marshal(lookupRequest{Code: code})
	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.CatalogCheckURL, bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("Error creating catalog request: %v", err)
		return nil, nil, fmt.Errorf("failed to create catalog request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("Error calling catalog lookup: %v", err)
		return nil, nil, fmt.Errorf("failed to contact catalog service")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Error reading catalog response body: %v", err)
		return nil, nil, fmt.Errorf("failed to read catalog response")
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Catalog lookup returned non-OK status: %d - Body: %s", resp.StatusCode, string(body))
		return nil, nil, fmt.Errorf("catalog lookup failed with status %d", resp.StatusCode)
	}

	var env lookupEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Printf("Error unmarshalling catalog response: %v - Body: %s", err, string(body))
		return nil, nil, fmt.Errorf("failed to parse catalog response")
	}

	if !env.Success || env.Data == nil {
		if env.Error != "" {
			log.Printf("Catalog lookup reported failure: %s", env.Error)
		}
		return nil, nil, fmt.Errorf("catalog lookup unsuccessful")
	}

	decision := env.Data.Pricing
	if decision == nil {
		decision = &models.PricingDecision{}
	}
	if decision.Message == "" {
		decision.Message = env.Data.Message
	}
	// A decision without a price cannot be an acceptance.
	if decision.OurPrice == nil {
		decision.Accepted = false
	}

	if decision.Accepted && *decision.OurPrice > c.cfg.MaxItemPrice {
		capped := c.cfg.MaxItemPrice
		decision.OurPrice = &capped
	}

	return env.Data.Product, decision, nil
}
