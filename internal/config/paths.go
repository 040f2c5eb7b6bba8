package config

import (
	"os"
	"path/filepath"
)

// Paths is the resolved set of file locations under the WOPR base dir.
type Paths struct {
	Base string
}

// Resolve returns the base-dir paths, honoring WOPR_HOME and falling back
// to ~/.wopr.
func Resolve() *Paths {
	base := os.Getenv("WOPR_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".wopr")
	}
	return &Paths{Base: base}
}

// Ensure creates the base dir and its sessions/credentials subdirectories.
func (p *Paths) Ensure() error {
	for _, dir := range []string{p.Base, p.SessionsDir(), p.CredentialsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (p *Paths) SessionsDir() string     { return filepath.Join(p.Base, "sessions") }
func (p *Paths) CredentialsDir() string  { return filepath.Join(p.Base, "credentials") }
func (p *Paths) SessionsIndex() string   { return filepath.Join(p.Base, "sessions.json") }
func (p *Paths) SecurityConfig() string  { return filepath.Join(p.Base, "security.json") }
func (p *Paths) SchedulerState() string  { return filepath.Join(p.Base, "scheduler.json") }
func (p *Paths) PIDFile() string         { return filepath.Join(p.Base, "daemon.pid") }
func (p *Paths) LogFile() string         { return filepath.Join(p.Base, "daemon.log") }

func (p *Paths) SessionContext(name string) string {
	return filepath.Join(p.SessionsDir(), name+".md")
}

func (p *Paths) SessionProvider(name string) string {
	return filepath.Join(p.SessionsDir(), name+".provider.json")
}

func (p *Paths) SessionCreated(name string) string {
	return filepath.Join(p.SessionsDir(), name+".created")
}

func (p *Paths) SessionLastTrigger(name string) string {
	return filepath.Join(p.SessionsDir(), name+".last-trigger")
}

func (p *Paths) SessionLog(name string) string {
	return filepath.Join(p.SessionsDir(), name+".conversation.jsonl")
}

func (p *Paths) Credential(providerID string) string {
	return filepath.Join(p.CredentialsDir(), providerID+".json")
}
