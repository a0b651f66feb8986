package domain

import (
	"fmt"
	"time"
)

// PolicyCheck records how a generated password scored against the
// composition policy.
type PolicyCheck struct {
	Lower  int
	Upper  int
	Digits int

	LowerOK  bool
	UpperOK  bool
	DigitsOK bool
}

func (p PolicyCheck) Passed() bool {
	return p.LowerOK && p.UpperOK && p.DigitsOK
}

// Credential is the ephemeral export account. It lives for one run and is
// never persisted.
type Credential struct {
	Account   string
	Password  string
	Grants    []string
	CreatedAt time.Time
	Policy    PolicyCheck
}

func (c *Credential) Login(alias string) *Login {
	return &Login{User: c.Account, Password: c.Password, Alias: alias}
}

// String never includes the password.
func (c *Credential) String() string {
	return fmt.Sprintf("%s (created %s, %d grants)", c.Account, c.CreatedAt.Format(time.RFC3339), len(c.Grants))
}
