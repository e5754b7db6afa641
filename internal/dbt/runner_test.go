package dbt

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// fakeDbt writes a shell script standing in for the dbt binary. It echoes its
// arguments, appends the subcommand to a journal file, writes to stderr and
// exits with FAKE_DBT_EXIT_<SUBCOMMAND> (default 0).
func fakeDbt(t *testing.T) (bin, journal string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "dbt")
	journal = filepath.Join(dir, "journal")
	script := `#!/bin/sh
echo "args: $*"
echo "$1" >> "` + journal + `"
echo "stderr from $1" >&2
if [ "$1" = "sleep" ]; then exec sleep 30; fi
if [ "$1" = "orphan" ]; then sleep 30 & exec sleep 30; fi
if [ "$1" = "longline" ]; then
  head -c 2097152 /dev/zero | tr '\0' 'x'
  echo
  i=0
  while [ "$i" -lt 2000 ]; do echo "after $i"; i=$((i+1)); done
  exit 0
fi
case "$1" in
  run) code="${FAKE_DBT_EXIT_RUN:-0}" ;;
  test) code="${FAKE_DBT_EXIT_TEST:-0}" ;;
  *) code=0 ;;
esac
exit "$code"
`
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake dbt: %v", err)
	}
	return bin, journal
}

func newRunner(t *testing.T, env ...string) (*Runner, *logtest.Hook, string) {
	t.Helper()
	return newRunnerWait(t, 0, env...)
}

func newRunnerWait(t *testing.T, waitDelay time.Duration, env ...string) (*Runner, *logtest.Hook, string) {
	t.Helper()
	bin, journal := fakeDbt(t)
	log, hook := logtest.NewNullLogger()
	r := New(Config{
		Binary:      bin,
		ProjectDir:  "/usr/app/dbt",
		ProfilesDir: "/dbt-env",
		WorkDir:     t.TempDir(),
		Env:         env,
		WaitDelay:   waitDelay,
	}, log)
	return r, hook, journal
}

func messages(hook *logtest.Hook, level logrus.Level) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestArgs(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	r := New(Config{Binary: "dbt", ProjectDir: "p", ProfilesDir: "q"}, logrus.New())
	g.Expect(r.Args("run")).To(Equal([]string{"run", "--profiles-dir", "q", "--project-dir", "p"}))
	g.Expect(r.Args("test --fail-fast")).To(Equal([]string{"test", "--fail-fast", "--profiles-dir", "q", "--project-dir", "p"}))

	bare := New(Config{Binary: "dbt"}, logrus.New())
	g.Expect(bare.Args("run")).To(Equal([]string{"run"}))
}

func TestRun_StreamsOutput(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, hook, _ := newRunner(t)

	g.Expect(r.Run(context.Background(), "run")).To(Succeed())
	g.Expect(messages(hook, logrus.InfoLevel)).To(ContainElement("args: run --profiles-dir /dbt-env --project-dir /usr/app/dbt"))
	g.Expect(messages(hook, logrus.WarnLevel)).To(ContainElement("stderr from run"))
	g.Expect(hook.LastEntry().Message).To(Equal("finished"))
	g.Expect(hook.LastEntry().Data).To(HaveKeyWithValue("step", "dbt run"))
}

func TestRun_ExitError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, _, _ := newRunner(t, "FAKE_DBT_EXIT_RUN=3")

	err := r.Run(context.Background(), "run")
	var ee *ExitError
	g.Expect(errors.As(err, &ee)).To(BeTrue(), "error = %v", err)
	g.Expect(ee.Code).To(Equal(3))
	g.Expect(ee.Stderr).To(Equal([]string{"stderr from run"}))
	g.Expect(ee.Error()).To(And(ContainSubstring("exited with status 3"), ContainSubstring("stderr from run")))
}

func TestRun_MissingBinary(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	r := New(Config{Binary: filepath.Join(t.TempDir(), "no-dbt")}, logrus.New())
	err := r.Run(context.Background(), "run")
	g.Expect(err).To(HaveOccurred())
	var ee *ExitError
	g.Expect(errors.As(err, &ee)).To(BeFalse())
	g.Expect(err.Error()).To(ContainSubstring("dbt: start"))
}

func TestRun_ContextCancelStopsTool(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, _, _ := newRunner(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, "sleep")
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue(), "error = %v", err)
	g.Expect(time.Since(start)).To(BeNumerically("<", 10*time.Second))
}

func TestRunSteps_StopsAtFirstFailure(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, _, journal := newRunner(t, "FAKE_DBT_EXIT_RUN=1")

	err := r.RunSteps(context.Background(), "run", "test")
	g.Expect(err).To(HaveOccurred())

	b, rerr := os.ReadFile(journal)
	g.Expect(rerr).NotTo(HaveOccurred())
	g.Expect(strings.Fields(string(b))).To(Equal([]string{"run"}))
}

func TestRunSteps_RunsAllInOrder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, _, journal := newRunner(t)

	g.Expect(r.RunSteps(context.Background(), "run", "test")).To(Succeed())

	b, err := os.ReadFile(journal)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(strings.Fields(string(b))).To(Equal([]string{"run", "test"}))
}

func TestRun_OversizedLineKeepsDraining(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, hook, _ := newRunner(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	g.Expect(r.Run(ctx, "longline")).To(Succeed())

	info := messages(hook, logrus.InfoLevel)
	g.Expect(info).To(ContainElement("after 1999"))
	var long string
	for _, m := range info {
		if strings.HasPrefix(m, "xxx") {
			long = m
		}
	}
	g.Expect(long).To(HaveSuffix(" [truncated]"))
	g.Expect(len(long)).To(Equal(maxLineBytes + len(" [truncated]")))
}

func TestRun_CancelReturnsDespiteInheritedStreams(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)
	r, _, _ := newRunnerWait(t, 200*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := r.Run(ctx, "orphan")
	g.Expect(err).To(HaveOccurred())
	g.Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue(), "error = %v", err)
	g.Expect(time.Since(start)).To(BeNumerically("<", 10*time.Second))
}

func TestPump(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("y", maxLineBytes+10)
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "lines", in: "a\nb\n", want: []string{"a", "b"}},
		{name: "crlf and blank lines", in: "a\r\n\r\n\nb", want: []string{"a", "b"}},
		{name: "no trailing newline", in: "tail", want: []string{"tail"}},
		{name: "oversized line cut", in: long + "\nnext\n", want: []string{long[:maxLineBytes] + " [truncated]", "next"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			var got []string
			g.Expect(pump(strings.NewReader(tt.in), func(l string) { got = append(got, l) })).To(Succeed())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}
