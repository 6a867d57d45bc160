package hasher

import (
	"github.com/alexedwards/argon2id"
)

var DefaultParams = &argon2id.Params{
	Memory:      64 * 1024, // 64 MiB
	Iterations:  2,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2 hashes passwords with argon2id and a server-side pepper.
type Argon2 struct {
	pepper string
	params *argon2id.Params
}

func New(pepper string, params *argon2id.Params) *Argon2 {
	if params == nil {
		params = DefaultParams
	}
	return &Argon2{pepper: pepper, params: params}
}

func (h *Argon2) Hash(password string) (string, error) {
	return argon2id.CreateHash(password+h.pepper, h.params)
}

func (h *Argon2) Verify(password, hash string) (bool, error) {
	return argon2id.ComparePasswordAndHash(password+h.pepper, hash)
}
