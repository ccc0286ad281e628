package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/omochice/toy-peer-chat/internal/trace"
	"github.com/omochice/toy-peer-chat/pkg/protocol"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] TRACE_FILE\n", os.Args[0])
		flag.PrintDefaults()
	}
	utc := flag.Bool("utc", false, "Print timestamps in UTC")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open trace: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := dump(os.Stdout, trace.NewReader(f), *utc); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read trace: %v\n", err)
		os.Exit(1)
	}
}

func dump(w io.Writer, r *trace.Reader, utc bool) error {
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		ts := rec.Time
		if utc {
			ts = ts.UTC()
		}
		if _, err := fmt.Fprintf(w, "%s %-8s %-5s %s\n",
			ts.Format(time.RFC3339Nano), rec.Direction, rec.Type, describe(rec.Frame)); err != nil {
			return err
		}
	}
}

func describe(f protocol.Frame) string {
	switch v := f.(type) {
	case protocol.Ident:
		return fmt.Sprintf("name=%q", v.Name)
	case protocol.Msg:
		var b strings.Builder
		fmt.Fprintf(&b, "content=%q", v.Content)
		for _, a := range v.Attachments {
			fmt.Fprintf(&b, " attachment=%q(%d bytes)", a.Name, a.Size)
		}
		return b.String()
	case protocol.Ping:
		return fmt.Sprintf("last_active=%d", v.LastActive)
	case protocol.Pong:
		return fmt.Sprintf("last_active=%d", v.LastActive)
	default:
		return ""
	}
}
