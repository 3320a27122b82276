package password

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2ID              = "argon2id"
)

// phc is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$hash" string.
type phc struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func (p phc) encode() string {
	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2ID,
		argon2.Version,
		p.memory,
		p.time,
		p.parallelism,
		base64.StdEncoding.EncodeToString(p.salt),
		base64.StdEncoding.EncodeToString(p.hash),
	)
}

func decodePHC(encoded string) (phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return phc{}, errors.New("invalid PHC format")
	}
	if parts[1] != argon2ID {
		return phc{}, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return phc{}, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return phc{}, errors.New("unsupported argon2 version")
	}

	var out phc
	if err := out.decodeParams(parts[3]); err != nil {
		return phc{}, err
	}

	if out.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil {
		return phc{}, errors.New("invalid salt encoding")
	}
	if len(out.salt) < int(minSaltLength) {
		return phc{}, errors.New("invalid salt length")
	}
	if out.hash, err = base64.StdEncoding.DecodeString(parts[5]); err != nil {
		return phc{}, errors.New("invalid hash encoding")
	}
	if len(out.hash) == 0 {
		return phc{}, errors.New("invalid hash length")
	}
	return out, nil
}

func (p *phc) decodeParams(part string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(part, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.New("invalid parameter entry")
		}
		if seen[key] {
			return errors.New("duplicate parameter")
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return errors.New("invalid memory parameter")
			}
			p.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return errors.New("invalid time parameter")
			}
			p.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return errors.New("invalid parallelism parameter")
			}
			p.parallelism = uint8(v)
		default:
			return errors.New("unsupported parameter")
		}
	}
	if !seen["m"] || !seen["t"] || !seen["p"] {
		return errors.New("missing parameters")
	}
	return nil
}
