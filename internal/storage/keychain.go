package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultKeychainService is the keychain service name entries are filed under
const DefaultKeychainService = "intake-tui"

// commandRunner runs a command with the given stdin and returns its combined output
type commandRunner func(ctx context.Context, stdin string, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, stdin string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	return cmd.CombinedOutput()
}

// KeychainStore keeps values as generic passwords in the macOS keychain.
// It shells out to the `security` tool; each key is stored as the account name.
type KeychainStore struct {
	service string
	run     commandRunner
}

// NewKeychainStore creates a keychain store for the given service name
func NewKeychainStore(service string) *KeychainStore {
	if service == "" {
		service = DefaultKeychainService
	}
	return &KeychainStore{service: service, run: execRunner}
}

func (s *KeychainStore) Get(ctx context.Context, key string) (string, error) {
	output, err := s.run(ctx, "", "security", "find-generic-password", "-s", s.service, "-a", key, "-w")
	if err != nil {
		if isKeychainNotFound(output) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("read keychain: %s: %w", strings.TrimSpace(string(output)), err)
	}

	value := strings.TrimSpace(string(output))
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set adds or updates (-U) the keychain entry. The command goes to
// `security -i` on stdin so the value never shows up in the process list;
// -X takes the value hex encoded, which keeps it clear of the tool's quoting.
func (s *KeychainStore) Set(ctx context.Context, key, value string) error {
	line := fmt.Sprintf("add-generic-password -U -s %s -a %s -X %s\n",
		quoteArg(s.service), quoteArg(key), hex.EncodeToString([]byte(value)))
	output, err := s.run(ctx, line, "security", "-i")
	if err != nil {
		return fmt.Errorf("write keychain: %s: %w", strings.TrimSpace(string(output)), err)
	}
	return nil
}

func (s *KeychainStore) Close() error {
	return nil
}

// quoteArg single-quotes s for the `security -i` command line
func quoteArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// isKeychainNotFound matches the message `security` prints for a missing item
func isKeychainNotFound(output []byte) bool {
	return strings.Contains(string(output), "could not be found")
}
