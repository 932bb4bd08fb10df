package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/protoscribe/protoscribe/pkg/dialog"
	"github.com/protoscribe/protoscribe/pkg/pipeline"
	"github.com/protoscribe/protoscribe/pkg/protocol"
)

var (
	generateFile  string
	generateOut   string
	generateQuery string
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f"))
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// transcriptFile is the YAML input of the generate command.
type transcriptFile struct {
	Messages []struct {
		Role string `yaml:"role"`
		Text string `yaml:"text"`
	} `yaml:"messages"`
	Files []struct {
		Filename string `yaml:"filename"`
		Content  string `yaml:"content"`
	} `yaml:"files"`
}

var generateCmd = &cobra.Command{
	Use:   "generate -f <file>",
	Short: "Generate a survey protocol from a transcript file",
	Long: `Generate a survey protocol from a transcript YAML file. Use '-' to
read from stdin.

The file holds the conversation to synthesize from:

  messages:
    - role: user
      text: |
        Встреча 14 марта. Обсуждали интеграцию с 1С...
  files:
    - filename: transcript.txt
      content: |
        ...

Progress is printed while the pipeline runs. The rendered Markdown and the
DOCX binary are written next to each other in the output directory.

Examples:
  protoscribe generate -f transcript.yaml
  protoscribe generate -f transcript.yaml -o out/
  protoscribe generate -f transcript.yaml --query '.protocolNumber'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateFile == "" {
			return fmt.Errorf("flag -f is required")
		}

		var query *gojq.Query
		if generateQuery != "" {
			q, err := gojq.Parse(generateQuery)
			if err != nil {
				return fmt.Errorf("invalid query %q: %w", generateQuery, err)
			}
			query = q
		}

		var data []byte
		var err error
		if generateFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(generateFile)
		}
		if err != nil {
			return err
		}
		var tf transcriptFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return fmt.Errorf("parse %s: %w", generateFile, err)
		}

		messages := make([]dialog.InboundMessage, 0, len(tf.Messages))
		for _, m := range tf.Messages {
			messages = append(messages, dialog.InboundMessage{Role: m.Role, Content: m.Text})
		}
		files := make([]dialog.InboundFile, 0, len(tf.Files))
		for _, f := range tf.Files {
			files = append(files, dialog.InboundFile{Filename: f.Filename, Content: f.Content})
		}
		turns := dialog.Normalize(messages, files)
		if len(turns) == 0 {
			return fmt.Errorf("%s contains no messages or files", generateFile)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		gen, err := buildGenerator(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		var proto *protocol.Protocol
		pipe := &pipeline.Pipeline{
			Generator:  gen,
			Model:      cfg.Models.Document.Name,
			OnProtocol: func(p *protocol.Protocol) { proto = p },
		}

		out := cmd.OutOrStdout()
		feed := pipeline.NewFeed()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for e := range feed.Events() {
				switch e.Type {
				case pipeline.EventTextDelta:
					fmt.Fprint(out, styleDim.Render(e.Delta))
				case pipeline.EventDataTitle:
					if title, ok := e.Data.(string); ok {
						fmt.Fprintln(out, styleTitle.Render(title))
					}
				}
			}
		}()

		md, err := pipe.Run(cmd.Context(), &dialog.AgentContext{Turns: turns}, feed)
		<-done
		fmt.Fprintln(out)
		if err != nil {
			return err
		}

		if query != nil {
			return runQuery(out, query, proto)
		}

		base := strings.TrimSuffix(proto.Filename(), ".docx")
		if err := os.MkdirAll(generateOut, 0755); err != nil {
			return err
		}
		mdPath := filepath.Join(generateOut, base+".md")
		if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
			return err
		}
		docx, err := protocol.DOCX(proto)
		if err != nil {
			return fmt.Errorf("encode docx: %w", err)
		}
		docxPath := filepath.Join(generateOut, proto.Filename())
		if err := os.WriteFile(docxPath, docx, 0644); err != nil {
			return err
		}

		fmt.Fprintln(out, styleSuccess.Render("Saved: "+mdPath))
		fmt.Fprintln(out, styleSuccess.Render("Saved: "+docxPath))
		return nil
	},
}

// runQuery applies a jq expression to the protocol JSON and prints each
// result on its own line.
func runQuery(out io.Writer, query *gojq.Query, proto *protocol.Protocol) error {
	raw, err := json.Marshal(proto)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	iter := query.Run(v)
	for {
		res, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := res.(error); ok {
			return fmt.Errorf("query: %w", err)
		}
		line, err := json.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(line))
	}
	return nil
}

func init() {
	generateCmd.Flags().StringVarP(&generateFile, "file", "f", "", "transcript YAML file (use '-' for stdin)")
	generateCmd.Flags().StringVarP(&generateOut, "output", "o", ".", "output directory")
	generateCmd.Flags().StringVar(&generateQuery, "query", "", "jq expression applied to the protocol JSON instead of writing files")
	rootCmd.AddCommand(generateCmd)
}
