package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/protoscribe/protoscribe/cmd/protoscribe/internal/config"
	"github.com/protoscribe/protoscribe/pkg/artifact"
	"github.com/protoscribe/protoscribe/pkg/llm"
)

// buildGenerator assembles the model mux from the configured backends. Only
// providers actually referenced by a model role are instantiated.
func buildGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	mux := &llm.Mux{}

	var (
		oaiClient    *openai.Client
		geminiClient *genai.Client
	)
	openaiFor := func(model string) (llm.Generator, error) {
		if oaiClient == nil {
			if cfg.OpenAI.APIKey == "" {
				return nil, fmt.Errorf("openai api key is not configured (config or OPENAI_API_KEY)")
			}
			opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
			if cfg.OpenAI.BaseURL != "" {
				opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
			}
			c := openai.NewClient(opts...)
			oaiClient = &c
		}
		return &llm.OpenAIGenerator{
			Client:        oaiClient,
			Model:         model,
			UseSystemRole: cfg.OpenAI.UseSystemRole,
		}, nil
	}
	geminiFor := func(model string) (llm.Generator, error) {
		if geminiClient == nil {
			if cfg.Gemini.APIKey == "" {
				return nil, fmt.Errorf("gemini api key is not configured (config or GEMINI_API_KEY)")
			}
			c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Gemini.APIKey})
			if err != nil {
				return nil, fmt.Errorf("gemini client: %w", err)
			}
			geminiClient = c
		}
		return &llm.GeminiGenerator{Client: geminiClient, Model: model}, nil
	}

	for _, ref := range []config.ModelRef{cfg.Models.Chat, cfg.Models.Classifier, cfg.Models.Document} {
		var (
			g   llm.Generator
			err error
		)
		switch ref.Provider {
		case "openai":
			g, err = openaiFor(ref.Name)
		case "gemini":
			g, err = geminiFor(ref.Name)
		default:
			return nil, fmt.Errorf("unknown model provider %q", ref.Provider)
		}
		if err != nil {
			return nil, err
		}
		mux.Handle(ref.Name, g)
	}
	return mux, nil
}

// buildArtifacts picks S3 when configured, the local data dir otherwise.
func buildArtifacts(cfg *config.Config) (artifact.Store, error) {
	if cfg.S3 != nil {
		client := s3.New(s3.Options{
			Region: cfg.S3.Region,
			Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
					SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
					SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
				}, nil
			}),
		})
		return artifact.NewS3(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
	return artifact.NewLocal(filepath.Join(cfg.DataDir, "artifacts"))
}
