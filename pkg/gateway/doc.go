// Package gateway provides a reusable deploy-gateway library that can be embedded into other Go applications.
//
// # Overview
//
// The deploy gateway is a self-service front end for infrastructure
// provisioning: it dispatches a GitHub Actions workflow that runs the
// infrastructure-as-code job, discovers the resulting run, and relays the
// run's status and logs back to the browser as a Server-Sent Events stream.
//
// # Basic Usage
//
// Create a gateway programmatically:
//
//	cfg := &gateway.Config{
//		Server: gateway.ServerConfig{
//			Port:        8080,
//			ReadTimeout: 30 * time.Second,
//		},
//		GitHub: gateway.GitHubConfig{
//			Owner:        "acme",
//			Repo:         "workflows",
//			WorkflowFile: "deploy.yml",
//			Ref:          "main",
//			Token:        os.Getenv("GITHUB_TOKEN"),
//		},
//		Stream: gateway.StreamConfig{
//			PollInterval: 3 * time.Second,
//			MaxAttempts:  20,
//		},
//		Logging: gateway.LoggingConfig{
//			Level:  "info",
//			Format: "json",
//		},
//	}
//
//	gw, err := gateway.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := gw.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// # Embedding
//
// Mount the gateway's handler into an existing HTTP server:
//
//	gw, _ := gateway.New(cfg)
//	mux := http.NewServeMux()
//	mux.Handle("/deploy/", http.StripPrefix("/deploy", gw.Handler()))
//
// # API surface
//
//	POST /v1/deployments           trigger a deployment, returns the run id
//	GET  /v1/deployments/stream    SSE stream of status/log/outputs events
//	GET  /v1/runs                  recent workflow runs
//	GET  /v1/runs/{run_id}         one run's status snapshot
//	GET  /health                   liveness
package gateway
