package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

// The test binary doubles as a fake Ghostscript: when fakeToolEnv is set it
// behaves like `gs` instead of running tests. Tests point ToolPath at
// os.Executable() and steer it through the environment, which the child
// inherits.
const (
	fakeToolEnv   = "PDFCOMPRESS_FAKE_GS"
	fakeModeEnv   = "PDFCOMPRESS_FAKE_GS_MODE"
	fakeRatioEnv  = "PDFCOMPRESS_FAKE_GS_RATIO"
	fakeVersion   = "10.02.1"
	fakeSyntaxErr = "Error: /syntaxerror in pdfmark"
)

func TestMain(m *testing.M) {
	if os.Getenv(fakeToolEnv) == "1" {
		os.Exit(runFakeTool(os.Args[1:]))
	}
	os.Exit(m.Run())
}

func runFakeTool(args []string) int {
	for _, arg := range args {
		if arg == "--version" {
			fmt.Println(fakeVersion)
			return 0
		}
	}

	var input, output string
	for _, arg := range args {
		if strings.HasPrefix(arg, "-sOutputFile=") {
			output = strings.TrimPrefix(arg, "-sOutputFile=")
		}
	}
	if len(args) > 0 {
		input = args[len(args)-1]
	}

	switch os.Getenv(fakeModeEnv) {
	case "hang":
		time.Sleep(time.Hour)
		return 0
	case "fail":
		fmt.Fprintln(os.Stderr, fakeSyntaxErr)
		return 1
	case "nooutput":
		return 0
	}

	data, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cannot read input:", err)
		return 2
	}

	ratio := 0.5
	if v := os.Getenv(fakeRatioEnv); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			ratio = parsed
		}
	}
	target := int(float64(len(data)) * ratio)

	fmt.Fprintln(os.Stderr, "Processing pages 1 through 1.")
	fmt.Fprintln(os.Stderr, "Page 1")

	out := sizedPDF(target)
	if os.Getenv(fakeModeEnv) == "garbage" {
		out = bytes.Repeat([]byte{0xAB}, target)
	}
	if err := os.WriteFile(output, out, 0600); err != nil {
		fmt.Fprintln(os.Stderr, "cannot write output:", err)
		return 2
	}
	return 0
}

// buildPDF renders a one-page PDF with a padding comment of the given length
// after the header. Offsets in the xref table are exact.
func buildPDF(padding int) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	if padding > 0 {
		b.WriteString("%")
		b.Write(bytes.Repeat([]byte("x"), padding))
		b.WriteString("\n")
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return b.Bytes()
}

// sizedPDF returns a valid PDF of exactly target bytes when target is larger
// than the minimal document.
func sizedPDF(target int) []byte {
	base := buildPDF(0)
	if target <= len(base)+2 {
		return base
	}

	padding := target - len(base) - 2
	out := buildPDF(padding)
	for i := 0; i < 8 && len(out) != target; i++ {
		padding -= len(out) - target
		out = buildPDF(padding)
	}
	return out
}

// useFakeTool points the compressor at the test binary acting as Ghostscript.
func useFakeTool(t *testing.T, mode string, ratio float64) string {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable() error = %v", err)
	}

	t.Setenv(fakeToolEnv, "1")
	t.Setenv(fakeModeEnv, mode)
	t.Setenv(fakeRatioEnv, strconv.FormatFloat(ratio, 'f', -1, 64))
	return exe
}
