package utils

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SixID is a 6-byte document ID stored as BSON BinData with custom subtype 0x80.
// Its string form is 10 characters of Crockford Base32.
type SixID [6]byte

// SixIDHookFunc is the signature of the NewSixID test hook. It returns an ID
// and whether to override the default random generation.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook can be set by tests to make generated IDs deterministic.
var NewSixIDHook SixIDHookFunc

// Crockford Base32: no padding, no I/L/O/U.
var crockford = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// NewSixID creates a new SixID from random data.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, override := NewSixIDHook(); override {
			return id
		}
	}

	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		// fall back to the zero ID if the entropy source fails
		return SixID{}
	}
	return id
}

// IsZero reports whether the ID is the zero value.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// String returns the 10-character Crockford Base32 representation.
func (u SixID) String() string {
	return crockford.EncodeToString(u[:])
}

// ParseSixID parses the Crockford Base32 string form of a SixID.
// Lowercase input and the commonly confused characters o/i/l are tolerated.
func ParseSixID(s string) (SixID, error) {
	if s == "" {
		return SixID{}, nil
	}

	s = strings.ToUpper(strings.ReplaceAll(s, "-", ""))
	s = strings.NewReplacer("O", "0", "I", "1", "L", "1").Replace(s)

	if len(s) != 10 {
		return SixID{}, errors.New("invalid SixID: string length must be 10")
	}

	decoded, err := crockford.DecodeString(s)
	if err != nil {
		return SixID{}, fmt.Errorf("invalid SixID: %w", err)
	}
	if len(decoded) != 6 {
		return SixID{}, errors.New("invalid SixID: decoded length must be 6 bytes")
	}

	var id SixID
	copy(id[:], decoded)
	return id, nil
}

// MarshalJSON marshals the SixID as its string form.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON unmarshals a SixID from its string form.
func (u *SixID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSixID(s)
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalBSONValue encodes the SixID as BinData subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(primitive.Binary{Subtype: 0x80, Data: u[:]})
}

// UnmarshalBSONValue decodes a SixID from BinData. Null decodes to the zero ID.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bson.TypeNull {
		*u = SixID{}
		return nil
	}
	raw := bson.RawValue{Type: t, Value: data}
	var bin primitive.Binary
	if err := raw.Unmarshal(&bin); err != nil {
		return fmt.Errorf("failed to decode SixID: %w", err)
	}
	if len(bin.Data) != 6 {
		return errors.New("invalid SixID: BinData length must be 6")
	}
	copy((*u)[:], bin.Data)
	return nil
}
