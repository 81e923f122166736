// Package preflight checks that claimrag can build and query an index in
// a project. Required checks cover the data directory and the tokenizer;
// provider checks probe Ollama when the config asks for it.
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Target{DataDir: dir, Config: cfg})
//	if checker.HasCriticalFailures(results) {
//	    // refuse to index
//	}
package preflight
