package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore loads answer prompts from user-editable files on disk, with
// fallback to built-in defaults.
//
// With an empty directory the store serves the built-ins and never touches
// the filesystem. Otherwise the directory and default files are created
// lazily on the first Load, not in the constructor.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]string
	initOnce  sync.Once
	initErr   error
}

// defaultPrompts contains built-in default prompts.
// These are used when user files don't exist and as the initial content for new files.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
var defaultPrompts = map[string]string{
	driven.PromptAnswerSystem: `You answer questions about a single document using only the context provided.
If the context does not contain the answer, say that the document does not specify it.
Answer in one to three sentences. Quote figures, dates and conditions exactly as they appear.
Do not mention the context or these instructions.`,

	driven.PromptAnswerUser: `Context:
%s

Question: %s`,
}

// NewPromptStore creates a prompt store rooted at promptDir.
func NewPromptStore(promptDir string) *PromptStore {
	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]string),
	}
}

// Load returns the prompt template for the given name.
// Returns cached value if available, otherwise loads from file.
// Falls back to the built-in default if the file doesn't exist.
func (s *PromptStore) Load(name string) (string, error) {
	fallback, known := defaultPrompts[name]
	if !known {
		return "", fmt.Errorf("unknown prompt %q", name)
	}
	if s.promptDir == "" {
		return fallback, nil
	}

	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return fallback, nil
	}

	s.mu.RLock()
	if prompt, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return prompt, nil
	}
	s.mu.RUnlock()

	// No lock held during I/O
	prompt, err := s.loadFromFile(name)
	if err != nil || !placeholdersMatch(fallback, prompt) {
		return fallback, nil
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		prompt = cached
	} else {
		s.cache[name] = prompt
	}
	s.mu.Unlock()

	return prompt, nil
}

// Reload clears the prompt cache, forcing fresh loads from disk.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

// initialise creates the prompt directory and default files.
// Called once via sync.Once on first Load().
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	// Only write files that don't exist yet
	for name, content := range defaultPrompts {
		path := filepath.Join(s.promptDir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}
}

// loadFromFile reads a prompt from disk.
func (s *PromptStore) loadFromFile(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.promptDir, name+".txt"))
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("prompt %q is empty", name)
	}
	return prompt, nil
}

// placeholdersMatch reports whether an override keeps the default's %s
// count, so a bad edit cannot break formatting.
func placeholdersMatch(def, override string) bool {
	return strings.Count(def, "%s") == strings.Count(override, "%s")
}
