// Command votectl reads and toggles comic votes from the terminal, keeping
// its visitor identity in a small state file between runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/jeromeabel/lapreuveduconcept/internal/voteclient"
)

const usage = `usage: votectl [flags] status <comic-id>...
       votectl [flags] toggle <comic-id>

flags:
`

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "votectl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flags := pflag.NewFlagSet("votectl", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	serverURL := flags.StringP("server", "s", envOr("VOTECTL_SERVER", "http://localhost:8080"), "vote API base URL")
	stateFile := flags.String("state-file", defaultStateFile(), "file holding the visitor token")
	timeout := flags.Duration("timeout", 10*time.Second, "request timeout")
	verbose := flags.BoolP("verbose", "v", false, "log requests and failures")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetLevel(logrus.WarnLevel)
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	rest := flags.Args()
	if len(rest) < 2 {
		flags.Usage()
		return errors.New("missing command or comic id")
	}
	cmd, ids := rest[0], rest[1:]

	client, err := voteclient.New(*serverURL, nil)
	if err != nil {
		return err
	}
	if token, err := readToken(*stateFile); err == nil {
		client.SetVisitorToken(token)
	} else if !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("ignoring unreadable state file")
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	switch cmd {
	case "status":
		err = status(ctx, client, log, ids, stdout)
	case "toggle":
		if len(ids) != 1 {
			return errors.New("toggle takes exactly one comic id")
		}
		err = toggle(ctx, client, log, ids[0], stdout)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	if token := client.VisitorToken(); token != "" {
		if werr := writeToken(*stateFile, token); werr != nil {
			log.WithError(werr).Warn("could not save visitor token")
		}
	}
	return err
}

func status(ctx context.Context, client *voteclient.Client, log logrus.FieldLogger, ids []string, out io.Writer) error {
	controls := make([]*voteclient.Control, len(ids))
	for i, id := range ids {
		ctl, err := voteclient.NewControl(id, nil)
		if err != nil {
			return err
		}
		controls[i] = ctl
	}
	if err := voteclient.NewController(client, log, controls...).Init(ctx); err != nil {
		return err
	}
	for _, ctl := range controls {
		printState(out, ctl.ComicID, ctl.State())
	}
	return nil
}

func toggle(ctx context.Context, client *voteclient.Client, log logrus.FieldLogger, id string, out io.Writer) error {
	ctl, err := voteclient.NewControl(id, func(comicID string, s voteclient.State) {
		log.WithFields(logrus.Fields{"comic_id": comicID, "count": s.Count, "voted": s.Voted, "disabled": s.Disabled}).Debug("render")
	})
	if err != nil {
		return err
	}
	controller := voteclient.NewController(client, log, ctl)
	if err := controller.Init(ctx); err != nil {
		return err
	}
	if err := controller.Click(ctx, ctl); err != nil {
		return err
	}
	printState(out, ctl.ComicID, ctl.State())
	return nil
}

func printState(out io.Writer, comicID string, s voteclient.State) {
	mark := " "
	if s.Voted {
		mark = "*"
	}
	if s.Disabled {
		fmt.Fprintf(out, "%s\t?\t(unknown)\n", comicID)
		return
	}
	fmt.Fprintf(out, "%s\t%d\t%s\n", comicID, s.Count, mark)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".votectl-visitor"
	}
	return filepath.Join(dir, "votectl", "visitor")
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", os.ErrNotExist
	}
	return token, nil
}

func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}
