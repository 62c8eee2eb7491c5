package password

import (
	"fmt"
	"math"
	"runtime"

	"github.com/kelseyhightower/envconfig"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted passwords.
type Policy struct {
	MinLength      int
	MaxLength      int
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns interactive-login costs and the account policy
// (at least 6 characters).
func DefaultConfig() Config {
	threads := min(max(runtime.NumCPU(), 1), 4)

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4].
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      6,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// envSpec mirrors the COUNSEL_PASSWORD_* and COUNSEL_ARGON2_* variables.
// Fields left unset in the environment keep the DefaultConfig values.
type envSpec struct {
	MinLen         int    `envconfig:"PASSWORD_MIN_LEN"`
	MaxLen         int    `envconfig:"PASSWORD_MAX_LEN"`
	RejectVeryWeak bool   `envconfig:"PASSWORD_REJECT_VERY_WEAK"`
	MemoryKiB      uint32 `envconfig:"ARGON2_MEMORY_KIB"`
	Iterations     uint32 `envconfig:"ARGON2_ITERATIONS"`
	Parallelism    uint32 `envconfig:"ARGON2_PARALLELISM"`
	SaltLen        uint32 `envconfig:"ARGON2_SALT_LEN"`
	KeyLen         uint32 `envconfig:"ARGON2_KEY_LEN"`
}

// FromEnv loads config from COUNSEL_PASSWORD_* / COUNSEL_ARGON2_* variables.
func FromEnv() (Config, error) {
	def := DefaultConfig()
	spec := envSpec{
		MinLen:         def.Policy.MinLength,
		MaxLen:         def.Policy.MaxLength,
		RejectVeryWeak: def.Policy.RejectVeryWeak,
		MemoryKiB:      def.Params.MemoryKiB,
		Iterations:     def.Params.Iterations,
		Parallelism:    uint32(def.Params.Parallelism),
		SaltLen:        def.Params.SaltLength,
		KeyLen:         def.Params.KeyLength,
	}
	if err := envconfig.Process("COUNSEL", &spec); err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}

	checks := []struct {
		name     string
		v, lo, h uint64
	}{
		{"COUNSEL_PASSWORD_MIN_LEN", uint64(max(spec.MinLen, 0)), 1, 1024},
		{"COUNSEL_PASSWORD_MAX_LEN", uint64(max(spec.MaxLen, 0)), 1, 4096},
		{"COUNSEL_ARGON2_MEMORY_KIB", uint64(spec.MemoryKiB), 8 * 1024, 1024 * 1024},
		{"COUNSEL_ARGON2_ITERATIONS", uint64(spec.Iterations), 1, 20},
		{"COUNSEL_ARGON2_PARALLELISM", uint64(spec.Parallelism), 1, math.MaxUint8},
		{"COUNSEL_ARGON2_SALT_LEN", uint64(spec.SaltLen), 8, 64},
		{"COUNSEL_ARGON2_KEY_LEN", uint64(spec.KeyLen), 16, 64},
	}
	for _, c := range checks {
		if c.v < c.lo || c.v > c.h {
			return Config{}, fmt.Errorf("%s: out of range [%d..%d]", c.name, c.lo, c.h)
		}
	}
	if spec.MinLen > spec.MaxLen {
		return Config{}, fmt.Errorf("password policy invalid: min_len(%d) > max_len(%d)", spec.MinLen, spec.MaxLen)
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   spec.MemoryKiB,
			Iterations:  spec.Iterations,
			Parallelism: uint8(spec.Parallelism), // #nosec G115 -- bounded above.
			SaltLength:  spec.SaltLen,
			KeyLength:   spec.KeyLen,
		},
		Policy: Policy{
			MinLength:      spec.MinLen,
			MaxLength:      spec.MaxLen,
			RejectVeryWeak: spec.RejectVeryWeak,
		},
	}, nil
}
