// Command httpserver runs the collectible registry API.
//
// On start it opens the SQLite event journal and brings the registry back to
// its last committed state. When started with restore-checkpoint, it loads that
// checkpoint from the configured backends first and replays only the journal
// events after it. An empty journal creates a new registry owned by
// owner-address.
//
// Checkpoints are written on demand by the owner through the API and once more
// on shutdown.
//
// Example:
//
//	registry-server --owner-address=0x8b5e... \
//	    --listen-addr=0.0.0.0:8080 \
//	    --journal-path=/var/lib/registry/events.db \
//	    --checkpoint-backend=file:///var/lib/registry/checkpoints \
//	    --checkpoint-backend='s3://registry-checkpoints/prod?region=eu-west-1' \
//	    --checkpoint-passphrase="$PASSPHRASE"
package main
