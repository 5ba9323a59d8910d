package password

import (
	"strings"
	"testing"
)

// testParams keeps the memory cost low so the suite stays fast.
var testParams = Params{
	Memory:      16 * 1024,
	Iterations:  2,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(testParams)
	encoded, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %q", encoded)
	}

	ok, err := hasher.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("verify password: %v", err)
	}
	if !ok {
		t.Fatalf("correct password rejected")
	}

	ok, err = hasher.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("verify wrong password: %v", err)
	}
	if ok {
		t.Fatalf("wrong password accepted")
	}
}

func TestHashUsesFreshSaltPerCall(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(testParams)
	first, err := hasher.Hash("same input")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	second, err := hasher.Hash("same input")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if first == second {
		t.Fatalf("identical passwords must produce distinct hashes")
	}
}

func TestVerifySurvivesCostChanges(t *testing.T) {
	t.Parallel()

	encoded, err := NewHasher(testParams).Hash("migrating password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	// A hasher with different costs must still verify old hashes because the
	// PHC string carries the original params.
	ok, err := NewHasher(DefaultParams).Verify("migrating password", encoded)
	if err != nil {
		t.Fatalf("verify with new params: %v", err)
	}
	if !ok {
		t.Fatalf("old hash rejected after cost change")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	t.Parallel()

	hasher := NewHasher(testParams)
	for _, encoded := range []string{"", "plaintext", "$argon2id$v=19$m=k$x$y", "$bcrypt$v=19$m=16,t=2,p=1$c2FsdA$aGFzaA"} {
		if _, err := hasher.Verify("anything", encoded); err == nil {
			t.Fatalf("malformed hash accepted: %q", encoded)
		}
	}
}
