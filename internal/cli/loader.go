package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/nats-io/nats.go"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/compiler"
	"github.com/roach88/mdrepo/internal/config"
	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/metrics"
	"github.com/roach88/mdrepo/internal/repository"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// env is an opened repository with its collaborators.
type env struct {
	cfg     *config.Config
	repo    *repository.Repository
	metrics *metrics.Metrics
	nc      *nats.Conn
	session repository.Session
}

// openEnv opens the configured statement store and repository and
// resolves the acting session from --as.
func openEnv(opts *RootOptions) (*env, error) {
	cfg := opts.config
	if cfg == nil {
		cfg = config.Default()
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	blobs, err := blob.NewFileStore(cfg.DataDir)
	if err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open data dir", err)
	}

	e := &env{cfg: cfg, metrics: metrics.New()}
	bus := events.NewBus()
	bus.Subscribe(events.All, func(ev events.Event) {
		slog.Debug("event", "kind", ev.Kind, "entry", ev.EntryURI, "seq", ev.Seq)
	})
	if cfg.Events.NATSURL != "" {
		fwd, nc, err := events.Connect(cfg.Events.NATSURL, cfg.Events.Subject)
		if err != nil {
			_ = st.Close()
			return nil, WrapExitError(ExitCommandError, "failed to connect to NATS", err)
		}
		bus.Subscribe(events.All, fwd.Handle)
		e.nc = nc
	}

	e.repo, err = repository.Open(st,
		repository.WithConfig(cfg),
		repository.WithBlobs(blobs),
		repository.WithSink(bus),
		repository.WithMetrics(e.metrics),
	)
	if err != nil {
		_ = st.Close()
		e.closeNATS()
		return nil, WrapExitError(ExitCommandError, "failed to open repository", err)
	}

	e.session, err = sessionFor(e.repo, opts.As)
	if err != nil {
		e.Close()
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("unknown principal %q", opts.As), err)
	}
	slog.Debug("repository open", "driver", cfg.Store.Driver, "path", cfg.Store.Path, "principal", e.session.Principal())
	return e, nil
}

// open is openEnv for commands: a failure is reported through f.
func (o *RootOptions) open(f *OutputFormatter) (*env, error) {
	e, err := openEnv(o)
	if err != nil {
		_ = f.Error(ErrCodeGeneric, err.Error(), nil)
		return nil, err
	}
	return e, nil
}

func openStore(cfg *config.Config) (store.StatementStore, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.Open(cfg.Store.Path)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Close flushes forwarded events, dumps metrics when configured and
// closes the store.
func (e *env) Close() {
	e.closeNATS()
	if path := e.cfg.Metrics.Textfile; path != "" {
		if err := e.metrics.WriteTextfile(path); err != nil {
			slog.Error("failed to write metrics", "path", path, "error", err)
		}
	}
	if err := e.repo.Close(); err != nil {
		slog.Error("error closing store", "error", err)
	}
}

func (e *env) closeNATS() {
	if e.nc == nil {
		return
	}
	if err := e.nc.Flush(); err != nil {
		slog.Error("failed to flush events", "error", err)
	}
	e.nc.Close()
	e.nc = nil
}

// sessionFor maps --as to a session. admin and guest name the system
// principals; a URI is taken as is.
func sessionFor(r *repository.Repository, name string) (repository.Session, error) {
	switch {
	case name == "" || name == vocab.AdminID || name == "admin":
		return r.AdminSession(), nil
	case name == vocab.GuestID || name == "guest":
		return r.GuestSession(), nil
	case isURI(name):
		return repository.NewSession(name), nil
	}
	return r.SessionFor(name)
}

// principalURI resolves a user or group name to its principal URI.
func principalURI(r *repository.Repository, name string) (string, error) {
	if isURI(name) {
		return name, nil
	}
	ps, err := r.Context(vocab.PrincipalsID)
	if err != nil {
		return "", err
	}
	e, err := ps.EntryByName(name)
	if err != nil {
		return "", err
	}
	return e.ResourceURI(), nil
}

// contextOf resolves a context id, falling back to a context name.
func contextOf(r *repository.Repository, idOrName string) (*repository.Context, error) {
	c, err := r.Context(idOrName)
	if err == nil || !repository.IsEntryMissingError(err) {
		return c, err
	}
	if byName, nameErr := r.ContextByName(idOrName); nameErr == nil {
		return byName, nil
	}
	return nil, err
}

func isURI(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// LoadError represents an error that occurred while loading a seed.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// loadSeed compiles the seed at path, a .cue file or a directory of them.
func loadSeed(path string) (*compiler.Seed, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("seed not found: %s", path)}
	}
	seed, err := compiler.LoadSeed(path)
	if err == nil {
		return seed, nil
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return nil, &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	if strings.Contains(err.Error(), "no .cue files") {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: err.Error()}
	}
	return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Seed structure errors
	ErrCodeInvalidStruct = "E011" // users, groups, contexts, lists or acl is not a struct
	ErrCodeInvalidList   = "E012" // a string list field holds something else
	ErrCodeInvalidString = "E013" // a string field holds something else
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "contexts", "users", "groups", "acl", "lists":
		return ErrCodeInvalidStruct
	case "list":
		return ErrCodeInvalidList
	case "home", "quota", "id", "parent":
		return ErrCodeInvalidString
	case "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
