// Copyright 2026 The Breakdown Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// Environment variables recognized by Resolve. When all three
// credential variables are set they take precedence over the sealed
// bundle, so CI jobs never need an identity file on disk.
const (
	EnvSite       = "BREAKDOWN_SITE"
	EnvScriptName = "BREAKDOWN_SCRIPT_NAME"
	EnvScriptKey  = "BREAKDOWN_SCRIPT_KEY"

	// EnvIdentity names the file holding the age identity that
	// decrypts the sealed bundle.
	EnvIdentity = "BREAKDOWN_IDENTITY"
)

// ErrNoCredentials is returned by Resolve when neither the environment
// nor a sealed bundle supplies credentials.
var ErrNoCredentials = errors.New("sealed: no credentials configured")

// Bundle holds the script credentials for one tracking site.
type Bundle struct {
	// Site is the tracking site root URL.
	Site string `json:"site"`

	// ScriptName and ScriptKey are the script credentials registered
	// with the site.
	ScriptName string `json:"script_name"`
	ScriptKey  string `json:"script_key"`
}

// Validate checks that every field is present.
func (b Bundle) Validate() error {
	var problems []error
	if b.Site == "" {
		problems = append(problems, errors.New("site is required"))
	}
	if b.ScriptName == "" {
		problems = append(problems, errors.New("script_name is required"))
	}
	if b.ScriptKey == "" {
		problems = append(problems, errors.New("script_key is required"))
	}
	if len(problems) > 0 {
		return fmt.Errorf("sealed: invalid bundle: %w", errors.Join(problems...))
	}
	return nil
}

// GenerateIdentity creates a new age x25519 identity. The first return
// is the secret identity in AGE-SECRET-KEY-1... form; the second is
// the matching public recipient in age1... form. The identity must
// never be logged or passed on a command line; write it to a file and
// point BREAKDOWN_IDENTITY at that file.
func GenerateIdentity() (identity, recipient string, err error) {
	generated, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("sealed: generating identity: %w", err)
	}
	return generated.String(), generated.Recipient().String(), nil
}

// Seal encrypts the bundle to one or more age recipients and returns
// the ciphertext base64-encoded. At least one recipient is required.
func Seal(bundle Bundle, recipientKeys []string) (string, error) {
	if err := bundle.Validate(); err != nil {
		return "", err
	}
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("sealed: at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("sealed: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("sealed: encoding bundle: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return "", fmt.Errorf("sealed: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return "", fmt.Errorf("sealed: encrypting bundle: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finalizing encryption: %w", err)
	}

	return base64.StdEncoding.EncodeToString(ciphertext.Bytes()), nil
}

// Unseal decrypts a base64 ciphertext produced by Seal using the age
// identity text (one or more identities, one per line, as stored in an
// identity file).
func Unseal(ciphertext, identityText string) (Bundle, error) {
	identities, err := age.ParseIdentities(strings.NewReader(identityText))
	if err != nil {
		return Bundle{}, fmt.Errorf("sealed: parsing identity: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return Bundle{}, fmt.Errorf("sealed: decoding ciphertext: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(raw), identities...)
	if err != nil {
		return Bundle{}, fmt.Errorf("sealed: decrypting bundle: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return Bundle{}, fmt.Errorf("sealed: reading decrypted bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return Bundle{}, fmt.Errorf("sealed: decoding bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

// DefaultBundlePath returns the per-user location of the sealed
// bundle: <user config dir>/breakdown/credentials.age.
func DefaultBundlePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("sealed: locating user config dir: %w", err)
	}
	return filepath.Join(configDir, "breakdown", "credentials.age"), nil
}

// SaveBundle seals the bundle and writes it to path with restrictive
// permissions, creating parent directories as needed.
func SaveBundle(path string, bundle Bundle, recipientKeys []string) error {
	ciphertext, err := Seal(bundle, recipientKeys)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("sealed: creating bundle directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(ciphertext+"\n"), 0o600); err != nil {
		return fmt.Errorf("sealed: writing bundle: %w", err)
	}
	return nil
}

// LoadBundle reads the sealed bundle at path and decrypts it with the
// identity stored in the file at identityPath.
func LoadBundle(path, identityPath string) (Bundle, error) {
	if identityPath == "" {
		return Bundle{}, fmt.Errorf("sealed: no identity file configured (set %s)", EnvIdentity)
	}
	identityText, err := os.ReadFile(identityPath)
	if err != nil {
		return Bundle{}, fmt.Errorf("sealed: reading identity file: %w", err)
	}
	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("sealed: reading bundle: %w", err)
	}
	return Unseal(string(ciphertext), string(identityText))
}

// FromEnvironment returns the credential bundle assembled from the
// environment, and whether all three variables were set. A partial set
// counts as absent; Resolve falls through to the sealed bundle.
func FromEnvironment() (Bundle, bool) {
	bundle := Bundle{
		Site:       os.Getenv(EnvSite),
		ScriptName: os.Getenv(EnvScriptName),
		ScriptKey:  os.Getenv(EnvScriptKey),
	}
	return bundle, bundle.Validate() == nil
}

// Resolve returns the effective credentials: the environment when it
// carries a complete bundle, otherwise the sealed bundle at path
// decrypted with the identity named by BREAKDOWN_IDENTITY. An empty
// path means DefaultBundlePath.
func Resolve(path string) (Bundle, error) {
	if bundle, ok := FromEnvironment(); ok {
		return bundle, nil
	}

	if path == "" {
		defaultPath, err := DefaultBundlePath()
		if err != nil {
			return Bundle{}, err
		}
		path = defaultPath
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Bundle{}, fmt.Errorf("%w: set %s/%s/%s or run 'breakdown auth login'",
			ErrNoCredentials, EnvSite, EnvScriptName, EnvScriptKey)
	}
	return LoadBundle(path, os.Getenv(EnvIdentity))
}
