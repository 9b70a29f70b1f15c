package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"karaokelover/services/identity"
	"karaokelover/services/youtube"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagJSON, flagNoColor, flagVerbose = false, false, false

	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = orig })

	cmdRoot.SetArgs(args)
	err := cmdRoot.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestIdentifyCommand_JSON(t *testing.T) {
	got, err := runCLI(t, "identify", "--json", "--no-ai", "Queen - Don't Stop Me Now (Karaoke Version)")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}

	var resp struct {
		Artist   string `json:"artist"`
		Song     string `json:"song"`
		Strategy string `json:"strategy"`
	}
	if err := json.Unmarshal([]byte(got), &resp); err != nil {
		t.Fatalf("output is not JSON: %q", got)
	}
	if resp.Artist != "Queen" || resp.Song != "Don't Stop Me Now" || resp.Strategy != "normalizer" {
		t.Errorf("identify = %+v", resp)
	}
}

func TestIdentifyCommand_Text(t *testing.T) {
	got, err := runCLI(t, "identify", "--no-color", "--no-ai", "Toto", "-", "Africa", "[Karaoke]")
	if err != nil {
		t.Fatalf("identify failed: %v", err)
	}

	for _, want := range []string{"Artist: Toto", "Song:   Africa", "via normalizer"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestCommands_RequireTitle(t *testing.T) {
	for _, name := range []string{"identify", "lyrics", "recommend", "search"} {
		t.Run(name, func(t *testing.T) {
			_, err := runCLI(t, name, "  ")

			var ue usageError
			if !errors.As(err, &ue) {
				t.Errorf("error = %v, want usageError", err)
			}
		})
	}
}

func TestRenderers(t *testing.T) {
	out = NewOutput(OutputOptions{NoColor: true, Writer: &bytes.Buffer{}})

	got := renderIdentity(identity.SongIdentity{Song: "Bohemian Rhapsody"}, identity.StrategyFallback)
	if !strings.Contains(got, "Artist: unknown") || !strings.Contains(got, "via fallback") {
		t.Errorf("renderIdentity = %q", got)
	}

	got = renderVideo(youtube.Video{VideoID: "abc123", Title: "Adele - Hello (Karaoke Version)", Channel: "Sing King"})
	if !strings.Contains(got, watchURL+"abc123") || !strings.Contains(got, "Sing King") {
		t.Errorf("renderVideo = %q", got)
	}
}

func TestOutput_JSONSuppressesText(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutput(OutputOptions{JSON: true, NoColor: true, Writer: &buf})

	o.Print("hello")
	o.Warn("careful")
	if buf.Len() != 0 {
		t.Errorf("text written in JSON mode: %q", buf.String())
	}

	if err := o.EmitJSON(map[string]int{"n": 1}); err != nil {
		t.Fatalf("EmitJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"n": 1`) {
		t.Errorf("EmitJSON wrote %q", buf.String())
	}
}
