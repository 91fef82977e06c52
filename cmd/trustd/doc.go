// Command trustd serves the trust rotation API.
//
// Configuration comes from a TOML file selected with --config; a handful of
// flags override the most commonly tuned settings. A minimal configuration:
//
//	listen_addr = "127.0.0.1:8080"
//	storage_uri = "file:///var/lib/trustd"
//	audit_log   = "/var/log/trustd/audit.jsonl"
//
//	[anchor]
//	rpc_addr    = "http://127.0.0.1:8545"
//	private_key = "..."
//
//	[transport]
//	endpoints  = ["http://signer-1:8080/notify"]
//	srv_domain = "_trustd._tcp.signers.example.com"
//
// The storage URI selects the backend holding trust state: memory://, file://,
// s3://, vault://, or ipfs://. Anchoring and co-signer notification are
// optional and disabled when their sections are absent.
package main
