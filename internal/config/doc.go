// Package config provides configuration parsing for the weft service.
//
// The configuration is stored in weft.yaml next to the service. It declares
// the served signals, their file sources, and the snapshot backend.
//
// # Configuration File Structure
//
//	addr: ":8080"
//	log_level: info
//	depth_limit: 0
//
//	signals:
//	  - name: greeting
//	    type: string
//	    initial: "hello"
//	    persist: true
//	  - name: flags
//	    type: json
//
//	sources:
//	  - path: ./flags.yaml
//	    signal: flags
//	    format: yaml
//	    debounce: 200ms
//
//	snapshot:
//	  backend: disk
//	  interval: 30s
//	  keep: 10
//	  disk:
//	    dir: ./snapshots
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
