package store

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"encrypted-cache-proxy/internal/fsutil"
	"encrypted-cache-proxy/internal/secure"

	"github.com/sirupsen/logrus"
)

// Options configures a DiskStore.
type Options struct {
	// Password is the cipher key material. When empty, the cache directory
	// path itself is used instead. A convenience fallback, not a security
	// recommendation.
	Password string
	// Secret overrides the derived cipher entirely. Mainly for tests.
	Secret secure.Secret
}

// DiskStore keeps one encrypted file per key, flat inside dir. A single
// mutex serializes every operation, so a read never observes a record that
// is still being written. One DiskStore per directory; concurrent handles
// from other processes are not guarded against.
type DiskStore struct {
	mu     sync.Mutex
	dir    string
	secret secure.Secret
}

// New creates a disk store rooted at dir. The directory itself is created
// lazily on the first Replace.
func New(dir string, opts Options) (*DiskStore, error) {
	secret := opts.Secret
	if secret == nil {
		password := opts.Password
		if password == "" {
			password = dir
		}
		var err error
		secret, err = secure.NewSecret(password)
		if err != nil {
			return nil, fmt.Errorf("deriving cache secret: %w", err)
		}
	}

	return &DiskStore{
		dir:    dir,
		secret: secret,
	}, nil
}

// path maps a raw caller key to the entry's file path.
func (s *DiskStore) path(key string) string {
	return filepath.Join(s.dir, secure.UniqueKey(s.dir, key))
}

// Get returns the entry stored under key, or nil when there is none. An
// existing file that cannot be decrypted and parsed in full is deleted and
// reported as absent, so a corrupt entry cannot fail twice.
func (s *DiskStore) Get(key string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}

	entry, err := s.readEntry(path)
	if err != nil {
		logrus.Debugf("Purging unreadable cache entry %s: %v", path, err)
		fsutil.DeleteAll(path)
		return nil
	}

	return entry
}

// Replace writes entry under key, overwriting any previous record. It
// returns false on an empty key, a nil entry, or any filesystem/cipher
// failure; a failed write never leaves a partial file behind.
func (s *DiskStore) Replace(key string, entry *Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key == "" || entry == nil {
		return false
	}

	if !fsutil.CreateFolder(s.dir) {
		logrus.Warnf("Failed to create cache directory %s", s.dir)
		return false
	}

	path := s.path(key)
	if err := s.writeEntry(path, entry); err != nil {
		logrus.Warnf("Failed to write cache entry %s: %v", path, err)
		fsutil.DeleteAll(path)
		return false
	}

	return true
}

// Remove deletes the entry stored under key. Removing an absent key
// succeeds; the result reports whether the file is gone afterwards.
func (s *DiskStore) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsutil.DeleteAll(s.path(key))
}

// Clear deletes the whole cache directory and reports whether it is gone.
func (s *DiskStore) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return fsutil.DeleteAll(s.dir)
}

// readEntry decodes the four-line record format: status, headers as JSON,
// hex-encoded body, expiry. Each line is individually encrypted.
func (s *DiskStore) readEntry(path string) (*Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fsutil.CloseQuietly(file)

	reader := bufio.NewReader(file)
	next := func() (string, error) {
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", err
		}
		return s.secret.Decrypt(strings.TrimSuffix(line, "\n"))
	}

	var entry Entry

	codeLine, err := next()
	if err != nil {
		return nil, err
	}
	if entry.Code, err = strconv.Atoi(codeLine); err != nil {
		return nil, fmt.Errorf("parsing status: %w", err)
	}

	headerLine, err := next()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(headerLine), &entry.Headers); err != nil {
		return nil, fmt.Errorf("parsing headers: %w", err)
	}

	bodyLine, err := next()
	if err != nil {
		return nil, err
	}
	if entry.Body, err = hex.DecodeString(bodyLine); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}

	expiresLine, err := next()
	if err != nil {
		return nil, err
	}
	if entry.Expires, err = strconv.ParseInt(expiresLine, 10, 64); err != nil {
		return nil, fmt.Errorf("parsing expiry: %w", err)
	}

	return &entry, nil
}

// writeEntry is the inverse of readEntry. The caller deletes the file when
// this returns an error.
func (s *DiskStore) writeEntry(path string, entry *Entry) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer fsutil.CloseQuietly(file)

	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return fmt.Errorf("encoding headers: %w", err)
	}

	fields := []string{
		strconv.Itoa(entry.Code),
		string(headers),
		hex.EncodeToString(entry.Body),
		strconv.FormatInt(entry.Expires, 10),
	}

	writer := bufio.NewWriter(file)
	for _, field := range fields {
		line, err := s.secret.Encrypt(field)
		if err != nil {
			return fmt.Errorf("encrypting field: %w", err)
		}
		if _, err := writer.WriteString(line + "\n"); err != nil {
			return err
		}
	}

	return writer.Flush()
}
