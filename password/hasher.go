package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrMismatch is returned by Compare when the password does not match.
	ErrMismatch = errors.New("password: mismatch")
	// ErrMalformedHash is returned for an encoded hash that cannot be parsed.
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Params are the Argon2id cost parameters. Memory is in KiB.
type Params struct {
	Memory     uint32 `yaml:"memory"`
	Passes     uint32 `yaml:"passes"`
	Lanes      uint8  `yaml:"lanes"`
	SaltLength uint32 `yaml:"salt_length"`
	KeyLength  uint32 `yaml:"key_length"`
}

// DefaultParams follows the RFC 9106 second recommendation for
// memory-constrained hosts.
func DefaultParams() Params {
	return Params{
		Memory:     64 * 1024,
		Passes:     3,
		Lanes:      2,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Validate rejects parameters too weak to be worth storing.
func (p Params) Validate() error {
	switch {
	case p.Memory < 8*1024:
		return errors.New("password: memory must be >= 8192 KiB")
	case p.Passes < 1:
		return errors.New("password: passes must be >= 1")
	case p.Lanes < 1:
		return errors.New("password: lanes must be >= 1")
	case p.SaltLength < 16:
		return errors.New("password: salt length must be >= 16")
	case p.KeyLength < 16:
		return errors.New("password: key length must be >= 16")
	}
	return nil
}

// Hasher produces and checks Argon2id hashes. It is safe for concurrent use.
type Hasher struct {
	params Params
}

func NewHasher(p Params) (*Hasher, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Hasher{params: p}, nil
}

// Hash derives a key from plain with a fresh random salt.
func (h *Hasher) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password: empty password")
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: salt: %w", err)
	}
	key := argon2.IDKey([]byte(plain), salt, h.params.Passes, h.params.Memory, h.params.Lanes, h.params.KeyLength)
	return encode(h.params, salt, key), nil
}

// Compare checks plain against encoded using the parameters recorded in
// encoded. It returns nil on a match and ErrMismatch otherwise.
func (h *Hasher) Compare(encoded, plain string) error {
	p, salt, key, err := decode(encoded)
	if err != nil {
		return err
	}
	got := argon2.IDKey([]byte(plain), salt, p.Passes, p.Memory, p.Lanes, uint32(len(key)))
	if subtle.ConstantTimeCompare(got, key) != 1 {
		return ErrMismatch
	}
	return nil
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than h uses now.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, _, key, err := decode(encoded)
	if err != nil {
		return false, err
	}
	return p.Memory < h.params.Memory ||
		p.Passes < h.params.Passes ||
		p.Lanes < h.params.Lanes ||
		uint32(len(key)) != h.params.KeyLength, nil
}

func encode(p Params, salt, key []byte) string {
	b64 := base64.RawStdEncoding
	return "$argon2id$v=" + strconv.Itoa(argon2.Version) +
		"$m=" + strconv.FormatUint(uint64(p.Memory), 10) +
		",t=" + strconv.FormatUint(uint64(p.Passes), 10) +
		",p=" + strconv.FormatUint(uint64(p.Lanes), 10) +
		"$" + b64.EncodeToString(salt) +
		"$" + b64.EncodeToString(key)
}

func decode(encoded string) (Params, []byte, []byte, error) {
	var p Params
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, fields[2])
	}

	seen := 0
	for _, kv := range strings.Split(fields[3], ",") {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return p, nil, nil, ErrMalformedHash
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return p, nil, nil, fmt.Errorf("%w: parameter %s", ErrMalformedHash, name)
		}
		switch name {
		case "m":
			p.Memory = uint32(n)
		case "t":
			p.Passes = uint32(n)
		case "p":
			if n > 255 {
				return p, nil, nil, fmt.Errorf("%w: parameter p", ErrMalformedHash)
			}
			p.Lanes = uint8(n)
		default:
			return p, nil, nil, fmt.Errorf("%w: unknown parameter %s", ErrMalformedHash, name)
		}
		seen++
	}
	if seen != 3 || p.Memory == 0 || p.Passes == 0 || p.Lanes == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := decodeB64(fields[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := decodeB64(fields[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}

func decodeB64(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}
