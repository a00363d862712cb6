// Package config loads runtime configuration for authctl.
//
// Sources, in increasing precedence: built-in defaults, an optional JSON file
// given with -c or -config, and the command-line flags -a and -t.
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "request_timeout": "10s"
//	}
package config
