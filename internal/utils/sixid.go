package utils

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
)

// SixIDHookFunc lets tests force the ids handed out by NewSixID.
type SixIDHookFunc func() (id SixID, override bool)

// NewSixIDHook is consulted by NewSixID when set.
var NewSixIDHook SixIDHookFunc

// SixIDSubtype is the BSON binary subtype used to store SixIDs.
const SixIDSubtype byte = 0x80

// SixID is a 6-byte random identifier. It renders as 10 Crockford base32
// characters in JSON and URLs and is stored as BSON binary subtype 0x80.
type SixID [6]byte

var (
	ErrSixIDLength = errors.New("invalid SixID: expected 10 base32 characters")
	ErrSixIDChar   = errors.New("invalid SixID: unexpected character")
)

const crockfordAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var crockfordDecode [256]int8

func init() {
	for i := range crockfordDecode {
		crockfordDecode[i] = -1
	}
	for i := 0; i < len(crockfordAlphabet); i++ {
		c := crockfordAlphabet[i]
		crockfordDecode[c] = int8(i)
		crockfordDecode[strings.ToLower(string(c))[0]] = int8(i)
	}
	// Crockford aliases for easily confused glyphs.
	for _, c := range []byte{'O', 'o'} {
		crockfordDecode[c] = 0
	}
	for _, c := range []byte{'I', 'i', 'L', 'l'} {
		crockfordDecode[c] = 1
	}
}

// NewSixID returns a random SixID.
func NewSixID() SixID {
	if NewSixIDHook != nil {
		if id, ok := NewSixIDHook(); ok {
			return id
		}
	}
	var id SixID
	if _, err := rand.Read(id[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return id
}

// IsZero reports whether the id is unset.
func (u SixID) IsZero() bool {
	return u == SixID{}
}

// String returns the 10-character Crockford base32 form.
func (u SixID) String() string {
	out := make([]byte, 0, 10)
	var acc uint
	var bits uint
	for _, b := range u {
		acc |= uint(b) << bits
		bits += 8
		for bits >= 5 {
			out = append(out, crockfordAlphabet[acc&0x1f])
			acc >>= 5
			bits -= 5
		}
	}
	if bits > 0 {
		out = append(out, crockfordAlphabet[acc&0x1f])
	}
	return string(out)
}

// ParseSixID decodes the base32 form. Hyphens and spaces are ignored.
// An empty string yields the zero id.
func ParseSixID(s string) (SixID, error) {
	var id SixID
	s = strings.NewReplacer("-", "", " ", "").Replace(s)
	if s == "" {
		return id, nil
	}
	if len(s) != 10 {
		return id, ErrSixIDLength
	}
	var acc uint64
	var bits uint
	n := 0
	for i := 0; i < len(s); i++ {
		v := crockfordDecode[s[i]]
		if v < 0 {
			return SixID{}, ErrSixIDChar
		}
		acc |= uint64(v) << bits
		bits += 5
		for bits >= 8 && n < len(id) {
			id[n] = byte(acc)
			n++
			acc >>= 8
			bits -= 8
		}
	}
	return id, nil
}

// ParseSixIDs parses a list, failing on the first bad entry.
func ParseSixIDs(values []string) ([]SixID, error) {
	ids := make([]SixID, 0, len(values))
	for _, v := range values {
		id, err := ParseSixID(v)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// MarshalJSON implements json.Marshaler.
func (u SixID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.String())
}

// UnmarshalJSON implements json.Unmarshaler.
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

// MarshalText lets SixID be used as a JSON map key.
func (u SixID) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (u *SixID) UnmarshalText(text []byte) error {
	parsed, err := ParseSixID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// MarshalBSONValue stores the id as binary subtype 0x80.
func (u SixID) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.TypeBinary, bsoncore.AppendBinary(nil, SixIDSubtype, u[:]), nil
}

// UnmarshalBSONValue accepts binary subtype 0x80 of length 6, or null.
func (u *SixID) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*u = SixID{}
		return nil
	case bson.TypeBinary:
		subtype, bin, _, ok := bsoncore.ReadBinary(data)
		if !ok {
			return errors.New("invalid SixID: malformed BSON binary")
		}
		if subtype != SixIDSubtype || len(bin) != len(u) {
			return fmt.Errorf("invalid SixID: subtype 0x%02x length %d", subtype, len(bin))
		}
		copy(u[:], bin)
		return nil
	default:
		return fmt.Errorf("invalid SixID: cannot decode BSON %s", t)
	}
}
