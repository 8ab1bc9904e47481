package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/docstore"
	"golang.org/x/crypto/bcrypt"
)

const (
	DirectoryKey    = "directory"
	DirectorySchema = "directory"
)

// NewDirectorySchema returns the directory schema. Version 1 documents held
// plaintext passwords; upgrading hashes them with the given bcrypt cost.
func NewDirectorySchema(cost int) docstore.Schema {
	return docstore.Schema{
		Name:    DirectorySchema,
		Version: 2,
		Upgrade: func(from int, body []byte) ([]byte, error) {
			if from != 1 {
				return nil, fmt.Errorf("no upgrade from directory v%d", from)
			}
			return upgradeDirectoryV1(body, cost)
		},
	}
}

type directoryDoc struct {
	Accounts map[string]Account `json:"accounts"` // by normalized email
}

func emptyDirectory() directoryDoc { return directoryDoc{Accounts: map[string]Account{}} }

type directoryV1 struct {
	Users []struct {
		Name       string `json:"name"`
		Email      string `json:"email"`
		Avatar     string `json:"avatar"`
		IsAdmin    bool   `json:"isAdmin"`
		IsVerified bool   `json:"isVerified"`
		Password   string `json:"password"`
	} `json:"users"`
}

func upgradeDirectoryV1(body []byte, cost int) ([]byte, error) {
	var v1 directoryV1
	if err := json.Unmarshal(body, &v1); err != nil {
		return nil, err
	}
	doc := emptyDirectory()
	for _, u := range v1.Users {
		acct := Account{
			User: User{
				Name:       u.Name,
				Email:      u.Email,
				Avatar:     u.Avatar,
				IsAdmin:    u.IsAdmin,
				IsVerified: u.IsVerified,
			},
			Provider: ProviderGoogle,
		}
		if u.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
			if err != nil {
				return nil, fmt.Errorf("hash password for %s: %w", u.Email, err)
			}
			acct.PasswordHash = string(hash)
			acct.Provider = ProviderPassword
		}
		doc.Accounts[NormalizeEmail(u.Email)] = acct
	}
	return json.Marshal(doc)
}

// Directory is the persisted email -> account mapping.
type Directory struct {
	docs    *docstore.Store
	nowFunc func() time.Time
}

func NewDirectory(docs *docstore.Store) *Directory {
	return &Directory{docs: docs, nowFunc: time.Now}
}

// Get returns the account for email.
func (d *Directory) Get(ctx context.Context, email string) (Account, bool, error) {
	doc, err := docstore.Read(ctx, d.docs, DirectoryKey, DirectorySchema, emptyDirectory)
	if err != nil {
		return Account{}, false, fmt.Errorf("load directory: %w", err)
	}
	acct, ok := doc.Accounts[NormalizeEmail(email)]
	return acct, ok, nil
}

// Create adds an account; an existing email is a Credential error.
func (d *Directory) Create(ctx context.Context, acct Account) error {
	key := NormalizeEmail(acct.User.Email)
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = d.nowFunc().UTC()
	}
	_, err := docstore.Update(ctx, d.docs, DirectoryKey, DirectorySchema, emptyDirectory, func(doc *directoryDoc) error {
		if doc.Accounts == nil {
			doc.Accounts = map[string]Account{}
		}
		if _, exists := doc.Accounts[key]; exists {
			return errEmailTaken
		}
		doc.Accounts[key] = acct
		return nil
	})
	return err
}

// Ensure returns the account for acct's email, creating it when missing.
func (d *Directory) Ensure(ctx context.Context, acct Account) (Account, error) {
	key := NormalizeEmail(acct.User.Email)
	var out Account
	_, err := docstore.Update(ctx, d.docs, DirectoryKey, DirectorySchema, emptyDirectory, func(doc *directoryDoc) error {
		if doc.Accounts == nil {
			doc.Accounts = map[string]Account{}
		}
		if existing, ok := doc.Accounts[key]; ok {
			out = existing
			return errUnchanged
		}
		if acct.CreatedAt.IsZero() {
			acct.CreatedAt = d.nowFunc().UTC()
		}
		doc.Accounts[key] = acct
		out = acct
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return Account{}, err
	}
	return out, nil
}

// SetPasswordHash replaces the credential of an existing account.
func (d *Directory) SetPasswordHash(ctx context.Context, email, hash string) error {
	key := NormalizeEmail(email)
	_, err := docstore.Update(ctx, d.docs, DirectoryKey, DirectorySchema, emptyDirectory, func(doc *directoryDoc) error {
		acct, ok := doc.Accounts[key]
		if !ok {
			return errAccountNotFound
		}
		acct.PasswordHash = hash
		if acct.Provider == "" {
			acct.Provider = ProviderPassword
		}
		doc.Accounts[key] = acct
		return nil
	})
	return err
}

// All returns every account keyed by normalized email.
func (d *Directory) All(ctx context.Context) (map[string]Account, error) {
	doc, err := docstore.Read(ctx, d.docs, DirectoryKey, DirectorySchema, emptyDirectory)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	return doc.Accounts, nil
}

// Replace overwrites the whole directory, as a backup restore does.
func (d *Directory) Replace(ctx context.Context, accounts map[string]Account) error {
	_, err := docstore.Update(ctx, d.docs, DirectoryKey, DirectorySchema, emptyDirectory, func(doc *directoryDoc) error {
		doc.Accounts = map[string]Account{}
		for _, a := range accounts {
			doc.Accounts[NormalizeEmail(a.User.Email)] = a
		}
		return nil
	})
	return err
}

var (
	errEmailTaken      = apperr.Credential("email_taken", "an account with this email already exists")
	errAccountNotFound = apperr.Credential("account_not_found", "no account found with this email")
	errUnchanged       = apperr.Conflict("unchanged", "")
)
