// Package main provides a CLI tool for generating signed export download
// URLs against a local server. These URLs use the dev signing key and will
// NOT validate in production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"leadcrm/internal/artifact"
	"leadcrm/pkg/secrets"
)

const (
	// Dev signing key - matches config.go when ARTIFACT_SIGNING_KEY is not set
	devSigningKey = "dev-secret-key-change-in-production"

	defaultBaseURL = "http://localhost:8080"
	defaultTTL     = 24 * time.Hour
)

type urlOutput struct {
	URL       string         `json:"url"`
	ExpiresIn string         `json:"expires_in"`
	Claims    map[string]any `json:"claims,omitempty"`
}

func main() {
	urlCmd := flag.NewFlagSet("url", flag.ExitOnError)
	inspectCmd := flag.NewFlagSet("inspect", flag.ExitOnError)
	keyCmd := flag.NewFlagSet("key", flag.ExitOnError)

	urlArtifactID := urlCmd.String("artifact-id", "", "Artifact ID. Generated if empty.")
	urlRequestID := urlCmd.String("request-id", "", "Lifecycle request ID. Generated if empty.")
	urlSubject := urlCmd.String("subject", "jane.doe@example.com", "Subject email the export belongs to")
	urlTTL := urlCmd.Duration("ttl", defaultTTL, "Link time-to-live")
	urlKey := urlCmd.String("key", devSigningKey, "Signing key")
	urlBase := urlCmd.String("base-url", defaultBaseURL, "Server base URL")
	urlJSON := urlCmd.Bool("json", false, "Output as JSON")

	inspectToken := inspectCmd.String("token", "", "Download token to validate")
	inspectKey := inspectCmd.String("key", devSigningKey, "Signing key")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "url":
		urlCmd.Parse(os.Args[2:])
		generateURL(*urlArtifactID, *urlRequestID, *urlSubject, *urlTTL, *urlKey, *urlBase, *urlJSON)
	case "inspect":
		inspectCmd.Parse(os.Args[2:])
		inspect(*inspectToken, *inspectKey)
	case "key":
		keyCmd.Parse(os.Args[2:])
		generateKey()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate signed export download URLs

WARNING: These URLs use the dev signing key and will NOT validate in
         production. Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  url       Generate a signed download URL for an export artifact
  inspect   Validate a download token and print its claims
  key       Generate a random ARTIFACT_SIGNING_KEY

Examples:
  # Signed URL for a fake artifact with defaults
  tokengen url

  # Signed URL for a real artifact with a short expiry
  tokengen url -artifact-id art_abc -subject jane@example.com -ttl 15m

  # Check why a link stopped working
  tokengen inspect -token "eyJ..."

  # Generate a production signing key
  tokengen key

Use "tokengen <command> -h" for more information about a command.`)
}

func generateURL(artifactID, requestID, subject string, ttl time.Duration, key, baseURL string, jsonOutput bool) {
	if artifactID == "" {
		artifactID = "art_" + uuid.New().String()
	}
	if requestID == "" {
		requestID = "req_" + uuid.New().String()
	}

	signer := artifact.NewURLSigner(key, baseURL)
	signed, err := signer.SignedURL(&artifact.Artifact{
		ID:        artifactID,
		RequestID: requestID,
		Subject:   subject,
		ExpiresAt: time.Now().Add(ttl),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error signing URL: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		printJSON(urlOutput{
			URL:       signed,
			ExpiresIn: ttl.String(),
			Claims: map[string]any{
				"artifact_id": artifactID,
				"request_id":  requestID,
				"subject":     subject,
			},
		})
		return
	}

	fmt.Println("Signed Download URL")
	fmt.Println("===================")
	fmt.Printf("Artifact ID: %s\n", artifactID)
	fmt.Printf("Request ID:  %s\n", requestID)
	fmt.Printf("Subject:     %s\n", subject)
	fmt.Printf("Expires In:  %s\n", ttl)
	fmt.Println()
	fmt.Println(signed)
}

func inspect(token, key string) {
	if token == "" {
		fmt.Fprintln(os.Stderr, "-token is required")
		os.Exit(1)
	}

	signer := artifact.NewURLSigner(key, defaultBaseURL)
	claims, err := signer.Validate(token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Token invalid: %v\n", err)
		os.Exit(1)
	}

	printJSON(map[string]any{
		"artifact_id": claims.ArtifactID,
		"subject":     claims.Subject,
		"request_id":  claims.ID,
		"issuer":      claims.Issuer,
		"expires_at":  claims.ExpiresAt.Time.Format(time.RFC3339),
	})
}

func generateKey() {
	key, err := secrets.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(key)
	fmt.Println()
	fmt.Println("Export it before starting the server:")
	fmt.Println("  export ARTIFACT_SIGNING_KEY=" + key)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}
