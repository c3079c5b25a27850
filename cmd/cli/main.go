// Command ptoctl is a CLI client for pto-server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/and161185/pto-keeper/internal/bridge"
	"github.com/and161185/pto-keeper/internal/model"
)

// ---- config/session store ----

type sessionFile struct {
	SessionID string    `json:"session_id"`
	UID       string    `json:"uid,omitempty"`
	IDToken   string    `json:"id_token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "ptoctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ptoctl")
}

func sessionPath() string { return filepath.Join(cfgDir(), "session.json") }

func saveSession(s *sessionFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(sessionPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// loadSession returns an empty session when none was saved. An expired id
// token is dropped; the session id is kept.
func loadSession() (*sessionFile, error) {
	b, err := os.ReadFile(sessionPath())
	if errors.Is(err, os.ErrNotExist) {
		return &sessionFile{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s sessionFile
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if s.IDToken != "" && time.Now().After(s.ExpiresAt) {
		s.IDToken = ""
	}
	return &s, nil
}

// ---- utils ----

var stdout io.Writer = os.Stdout

func printJSON(v any) {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// printRecords prints the collection ordered by uid, one line per record.
func printRecords(recs model.PtoCollection) {
	uids := make([]string, 0, len(recs))
	for uid := range recs {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		r := recs[uid]
		name := "-"
		switch {
		case r.Name.IsNull():
			name = "null"
		case r.Name.Set:
			name = fmt.Sprintf("%q", *r.Name.Value)
		}
		fmt.Fprintf(stdout, "%s name=%s years=%s\n", uid, name, formatYears(r.Years))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `ptoctl CLI
Usage:
  ptoctl [-addr http://HOST:PORT] [-origin URL] [-json] <cmd> [args]

Commands:
  version
  signup       -e <email> -p <password> [-n <display name>]
  signin       -e <email> -p <password>          (saves session)
  signout
  me
  list
  watch                                           (prints events until interrupted)
  create-self  [-uid <uid>]
  update       [-uid <uid>] -years 2024=3,2025=1.5
  set-name     [-uid <uid>] -name <name>
  remove-name  [-uid <uid>]
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands; the session cookie and id token persist in cfgDir.
func main() {
	// global flags
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	origin := flag.String("origin", "", "websocket origin (default: addr)")
	asJSON := flag.Bool("json", false, "print JSON")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout (not applied to watch)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("ptoctl %s (%s)\n", version, buildDate)
		return
	}

	sess, err := loadSession()
	if err != nil {
		fail(err)
	}
	c, err := newClient(*addr, *origin, sess)
	if err != nil {
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cmd != "watch" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	err = runCommand(ctx, c, cmd, args, *asJSON)
	if serr := saveSession(c.sess); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fail(err)
	}
}

var errUsage = errors.New("usage")

// runCommand executes one subcommand against c.
func runCommand(ctx context.Context, c *client, cmd string, args []string, asJSON bool) error {
	switch cmd {

	case "signup", "signin":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		email := fs.String("e", "", "email")
		pw := fs.String("p", "", "password")
		name := fs.String("n", "", "display name (signup)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if *email == "" || *pw == "" {
			return errors.New("need -e and -p")
		}
		u, err := c.signIn(ctx, cmd, credentials{Email: *email, Password: *pw, DisplayName: *name})
		if err != nil {
			return err
		}
		if asJSON {
			printJSON(u)
		} else {
			fmt.Fprintln(stdout, u.UID)
		}
		return nil

	case "signout":
		if err := c.signOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	case "me":
		u, err := c.me(ctx)
		if err != nil {
			return err
		}
		printJSON(u)
		return nil

	case "list":
		return withBridge(ctx, c, func(b *bridgeConn, _ model.AuthUser) error {
			id, err := b.send(bridge.RequestPto{})
			if err != nil {
				return err
			}
			recs, err := b.awaitData(id)
			if err != nil {
				return err
			}
			show(recs, asJSON)
			return nil
		})

	case "watch":
		return watch(ctx, c, asJSON)

	case "create-self":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		uid := fs.String("uid", "", "record uid (default: signed-in user)")
		settle := fs.Duration("settle", 500*time.Millisecond, "how long to wait for a failure report")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withBridge(ctx, c, func(b *bridgeConn, me model.AuthUser) error {
			target := pick(*uid, me.UID)
			id, err := b.send(bridge.CreateSelf{UID: target})
			if err != nil {
				return err
			}
			// createSelf has no success event
			if err := b.awaitError(id, *settle); err != nil {
				return err
			}
			id, err = b.send(bridge.RequestPto{})
			if err != nil {
				return err
			}
			recs, err := b.awaitData(id)
			if err != nil {
				return err
			}
			rec, ok := recs[target]
			if !ok {
				return fmt.Errorf("record %s not visible yet; retry list", target)
			}
			show(model.PtoCollection{target: rec}, asJSON)
			return nil
		})

	case "update", "set-name", "remove-name":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		uid := fs.String("uid", "", "record uid (default: signed-in user)")
		yearsArg := fs.String("years", "", "years, e.g. 2024=3,2025=1.5 (update)")
		name := fs.String("name", "", "display name (set-name)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withBridge(ctx, c, func(b *bridgeConn, me model.AuthUser) error {
			target := pick(*uid, me.UID)
			var req bridge.Request
			switch cmd {
			case "update":
				years, err := parseYears(*yearsArg)
				if err != nil {
					return err
				}
				req = bridge.UpdatePto{UID: target, Years: years}
			case "set-name":
				if *name == "" {
					return errors.New("need -name")
				}
				req = bridge.SetName{UID: target, Name: *name}
			default:
				req = bridge.RemoveName{UID: target}
			}
			id, err := b.send(req)
			if err != nil {
				return err
			}
			// the server pushes the refreshed collection after a successful write
			recs, err := b.awaitData(id)
			if err != nil {
				return err
			}
			show(recs, asJSON)
			return nil
		})

	case "help":
		return errUsage
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func withBridge(ctx context.Context, c *client, fn func(*bridgeConn, model.AuthUser) error) error {
	b, err := c.dialBridge(ctx)
	if err != nil {
		return err
	}
	defer b.Close()
	me, err := b.awaitAuth()
	if err != nil {
		return err
	}
	return fn(b, me)
}

func watch(ctx context.Context, c *client, asJSON bool) error {
	b, err := c.dialBridge(ctx)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = b.Close()
	}()
	for {
		ev, err := b.next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if asJSON {
			printJSON(map[string]any{"event": ev.Name(), "payload": ev})
			continue
		}
		switch e := ev.(type) {
		case bridge.LoggedIn:
			fmt.Fprintf(stdout, "loggedIn %s %s\n", e.User.UID, e.User.Email)
		case bridge.LoggedOut:
			fmt.Fprintln(stdout, "loggedOut")
		case bridge.PtoData:
			fmt.Fprintln(stdout, "ptoData")
			printRecords(e.Records)
		case bridge.PtoError:
			fmt.Fprintln(stdout, ptoErr(e))
		}
	}
}

func show(recs model.PtoCollection, asJSON bool) {
	if asJSON {
		printJSON(recs)
		return
	}
	printRecords(recs)
}

func pick(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	return fallback
}

// ---- helpers ----

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
