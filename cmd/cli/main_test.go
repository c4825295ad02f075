package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/pquerna/otp/totp"

	pkgcrypto "github.com/and161185/nevi/internal/crypto"
	"github.com/and161185/nevi/internal/errs"
	"github.com/and161185/nevi/internal/model"
)

type memUsers struct{ created []*model.User }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	for _, x := range m.created {
		if x.Username == u.Username {
			return errs.ErrAlreadyExists
		}
	}
	m.created = append(m.created, u)
	return nil
}
func (m *memUsers) GetByID(context.Context, uuid.UUID) (*model.User, error) {
	return nil, errs.ErrNotFound
}
func (m *memUsers) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, errs.ErrNotFound
}
func (m *memUsers) GetByRememberToken(context.Context, string) (*model.User, error) {
	return nil, errs.ErrNotFound
}
func (m *memUsers) SetRememberToken(context.Context, uuid.UUID, string) error { return nil }
func (m *memUsers) SwapRememberToken(context.Context, uuid.UUID, string, string) error {
	return nil
}
func (m *memUsers) SetRecoveryToken(context.Context, string, string) error { return nil }
func (m *memUsers) UsernamesByID(context.Context, []uuid.UUID) (map[uuid.UUID]string, error) {
	return nil, nil
}

func Test_readPassword(t *testing.T) {
	if p, err := readPassword("given", strings.NewReader("ignored\n")); err != nil || p != "given" {
		t.Fatalf("flag value: %q %v", p, err)
	}
	if p, err := readPassword("", strings.NewReader("from-stdin\r\nmore")); err != nil || p != "from-stdin" {
		t.Fatalf("stdin: %q %v", p, err)
	}
	if p, err := readPassword("", strings.NewReader("no-newline")); err != nil || p != "no-newline" {
		t.Fatalf("stdin without newline: %q %v", p, err)
	}
	if _, err := readPassword("", strings.NewReader("")); err == nil {
		t.Fatalf("want error for empty input")
	}
}

func Test_cmdHashPassword(t *testing.T) {
	out, err := cmdHashPassword([]string{"-p", "correct-horse"}, strings.NewReader(""))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(out, "$argon2id$") || !pkgcrypto.VerifyPassword("correct-horse", out) {
		t.Fatalf("unexpected hash %q", out)
	}
}

func Test_cmdCreateUser(t *testing.T) {
	ctx := context.Background()
	users := &memUsers{}

	if _, err := cmdCreateUser(ctx, users, []string{"-p", "x"}, strings.NewReader("")); err == nil {
		t.Fatalf("want error without username")
	}

	out, err := cmdCreateUser(ctx, users, []string{"-u", "alice", "-email", "a@example.com", "-first", "Alice"}, strings.NewReader("correct-horse\n"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "created user alice") || strings.Contains(out, "totp") {
		t.Fatalf("output: %q", out)
	}
	u := users.created[0]
	if u.ID == uuid.Nil || u.Email != "a@example.com" || u.MFARequired || u.TOTPSecret != "" {
		t.Fatalf("user: %+v", u)
	}
	if !pkgcrypto.VerifyPassword("correct-horse", u.PasswordHash) {
		t.Fatalf("stored hash does not verify")
	}

	if _, err := cmdCreateUser(ctx, users, []string{"-u", "alice", "-p", "x"}, strings.NewReader("")); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("want duplicate error, got %v", err)
	}

	out, err = cmdCreateUser(ctx, users, []string{"-u", "bob", "-p", "pw", "-mfa"}, strings.NewReader(""))
	if err != nil {
		t.Fatalf("create mfa: %v", err)
	}
	bob := users.created[1]
	if !bob.MFARequired || bob.TOTPSecret == "" || !strings.Contains(out, "otpauth://") {
		t.Fatalf("mfa user: %+v out=%q", bob, out)
	}
	code, err := totp.GenerateCode(bob.TOTPSecret, time.Now())
	if err != nil || !totp.Validate(code, bob.TOTPSecret) {
		t.Fatalf("secret unusable: %v", err)
	}
}

func Test_newTOTP(t *testing.T) {
	secret, url, err := newTOTP("carol")
	if err != nil {
		t.Fatalf("newTOTP: %v", err)
	}
	if secret == "" || !strings.Contains(url, "issuer=nevi") || !strings.Contains(url, "carol") {
		t.Fatalf("secret=%q url=%q", secret, url)
	}
}
