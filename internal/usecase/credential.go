package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode"

	"github.com/semmidev/oraexport/internal/domain"
)

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PasswordPolicy controls the generated password shape. Lengths count the
// alphanumeric characters only; a separator is inserted after every Group.
type PasswordPolicy struct {
	Length      int
	Group       int
	Separator   byte
	MinLower    int
	MinUpper    int
	MinDigits   int
	MaxAttempts int
}

var DefaultPasswordPolicy = PasswordPolicy{
	Length:      24,
	Group:       6,
	Separator:   '_',
	MinLower:    4,
	MinUpper:    4,
	MinDigits:   4,
	MaxAttempts: 1000,
}

// GeneratePassword draws candidates from r until one satisfies the policy or
// MaxAttempts is reached. Candidates always start with a letter.
func GeneratePassword(r io.Reader, policy PasswordPolicy) (string, domain.PolicyCheck, error) {
	var check domain.PolicyCheck
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		candidate, err := candidatePassword(r, policy)
		if err != nil {
			return "", check, fmt.Errorf("read random source: %w", err)
		}
		check = scorePassword(candidate, policy)
		if check.Passed() && unicode.IsLetter(rune(candidate[0])) {
			return candidate, check, nil
		}
	}
	return "", check, fmt.Errorf("%w after %d attempts", domain.ErrPasswordPolicy, policy.MaxAttempts)
}

func candidatePassword(r io.Reader, policy PasswordPolicy) (string, error) {
	// Largest multiple of the alphabet size that fits in a byte; anything
	// above it is rejected so every character is equally likely.
	limit := byte(256 - 256%len(passwordAlphabet))

	out := make([]byte, 0, policy.Length+policy.Length/max(policy.Group, 1))
	buf := make([]byte, policy.Length)
	n := 0
	for n < policy.Length {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= limit || n == policy.Length {
				continue
			}
			if n > 0 && policy.Group > 0 && n%policy.Group == 0 {
				out = append(out, policy.Separator)
			}
			out = append(out, passwordAlphabet[int(b)%len(passwordAlphabet)])
			n++
		}
	}
	return string(out), nil
}

func scorePassword(pw string, policy PasswordPolicy) domain.PolicyCheck {
	var c domain.PolicyCheck
	for _, ch := range pw {
		switch {
		case ch >= 'a' && ch <= 'z':
			c.Lower++
		case ch >= 'A' && ch <= 'Z':
			c.Upper++
		case ch >= '0' && ch <= '9':
			c.Digits++
		}
	}
	c.LowerOK = c.Lower >= policy.MinLower
	c.UpperOK = c.Upper >= policy.MinUpper
	c.DigitsOK = c.Digits >= policy.MinDigits
	return c
}

type CredentialSettings struct {
	Account           string
	Directory         string
	DefaultTablespace string
	GrantDBA          bool
	AccountAttempts   int
	Policy            PasswordPolicy
}

// Credentials provisions and removes the ephemeral export account. All
// statements run over the local OS-authenticated session, inside the
// pluggable database.
type Credentials struct {
	sql      domain.SQLExecutor
	logger   Logger
	settings CredentialSettings
	random   io.Reader
	now      func() time.Time
}

func NewCredentials(sql domain.SQLExecutor, random io.Reader, settings CredentialSettings, logger Logger) *Credentials {
	return &Credentials{
		sql:      sql,
		logger:   logger,
		settings: settings,
		random:   random,
		now:      time.Now,
	}
}

// Provision creates the account with a fresh password, verifies it is
// visible, and grants the export privileges in one batch. The caller must
// call Revoke whatever the outcome.
func (c *Credentials) Provision(ctx context.Context, rc domain.RunContext) (*domain.Credential, error) {
	account := c.settings.Account
	if err := domain.ValidateIdentifier("account", account); err != nil {
		return nil, err
	}

	password, check, err := GeneratePassword(c.random, c.settings.Policy)
	if err != nil {
		return nil, err
	}
	c.logger.Infof("[%s] Generated password for %s (lower=%d upper=%d digits=%d)",
		rc.Target, account, check.Lower, check.Upper, check.Digits)

	if err := c.createVerified(ctx, rc, account, password); err != nil {
		return nil, err
	}

	grants := c.grants()
	if c.settings.GrantDBA {
		c.logger.Warnf("[%s] Granting DBA to %s; the account holds full administrative rights until it is dropped", rc.Target, account)
	}
	if err := execute(ctx, c.sql, rc.LocalSession(), grants...); err != nil {
		return nil, fmt.Errorf("grant privileges to %s: %w", account, err)
	}

	cred := &domain.Credential{
		Account:   account,
		Password:  password,
		Grants:    grants,
		CreatedAt: c.now(),
		Policy:    check,
	}
	c.logger.Infof("[%s] Provisioned %s", rc.Target, cred)
	return cred, nil
}

func (c *Credentials) createVerified(ctx context.Context, rc domain.RunContext, account, password string) error {
	attempts := max(c.settings.AccountAttempts, 1)
	create := fmt.Sprintf(createUserPLSQL, account, password, c.settings.DefaultTablespace)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := execute(ctx, c.sql, rc.LocalSession(), create); err != nil {
			if isSessionError(err) {
				return err
			}
			lastErr = err
			c.logger.Warnf("[%s] Create %s attempt %d/%d failed: %v", rc.Target, account, attempt, attempts, err)
			continue
		}

		exists, err := c.Exists(ctx, rc)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		lastErr = fmt.Errorf("%s not visible in dba_users", account)
		c.logger.Warnf("[%s] Create %s attempt %d/%d not verified", rc.Target, account, attempt, attempts)
	}
	return fmt.Errorf("%w: %s after %d attempt(s): %v", domain.ErrAccountVerification, account, attempts, lastErr)
}

func (c *Credentials) grants() []string {
	acct := c.settings.Account
	g := []string{
		"GRANT CREATE SESSION TO " + acct,
		fmt.Sprintf("GRANT READ, WRITE ON DIRECTORY %s TO %s", c.settings.Directory, acct),
		"GRANT DATAPUMP_EXP_FULL_DATABASE TO " + acct,
		fmt.Sprintf("ALTER USER %s QUOTA UNLIMITED ON %s", acct, c.settings.DefaultTablespace),
	}
	if c.settings.GrantDBA {
		g = append(g, "GRANT DBA TO "+acct)
	}
	return g
}

// Revoke drops the account. Dropping an account that does not exist is not
// an error.
func (c *Credentials) Revoke(ctx context.Context, rc domain.RunContext) error {
	if err := execute(ctx, c.sql, rc.LocalSession(), fmt.Sprintf(dropUserPLSQL, c.settings.Account)); err != nil {
		return fmt.Errorf("drop %s: %w", c.settings.Account, err)
	}
	c.logger.Infof("[%s] Dropped %s", rc.Target, c.settings.Account)
	return nil
}

func (c *Credentials) Exists(ctx context.Context, rc domain.RunContext) (bool, error) {
	out, err := query(ctx, c.sql, rc.LocalSession(), fmt.Sprintf(userExistsSQL, c.settings.Account))
	if err != nil {
		return false, fmt.Errorf("look up %s: %w", c.settings.Account, err)
	}
	for _, name := range out {
		if name == c.settings.Account {
			return true, nil
		}
	}
	return false, nil
}

func isSessionError(err error) bool {
	return errors.Is(err, domain.ErrAuthenticationFailed) || errors.Is(err, domain.ErrUnreachable)
}
