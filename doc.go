// Package sftpdeploy uploads a fixed manifest of local files and directories
// to a remote host over SFTP.
//
// This package provides:
//   - An SSH/SFTP client implementing the Transport contract (password,
//     private key with optional passphrase, or ssh-agent authentication)
//   - A directory ensurer that creates missing remote parents one level at a
//     time and tolerates "already exists" races
//   - An uploader that mirrors local directory trees, skipping symlinks
//   - A dry-run mode that logs every mkdir and put instead of issuing it
//
// # Basic Usage
//
// Load a deploy file and run it:
//
//	cfg, err := sftpdeploy.LoadConfig("deploy.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	err = sftpdeploy.Deploy(ctx, cfg, sftpdeploy.WithLogger(logger))
//
// A deploy.json looks like:
//
//	{
//	  "host": "example.com",
//	  "username": "deploy",
//	  "privateKeyPath": "~/.ssh/id_ed25519",
//	  "remoteRoot": "/public_html",
//	  "sync": [
//	    {"local": "index.php", "remote": "index.php"},
//	    {"local": "dist", "remote": "."}
//	  ]
//	}
//
// A directory entry whose remote is "." uploads its contents directly into
// remoteRoot rather than into a subdirectory.
//
// # Lower-Level API
//
// The pieces can be driven against any Transport:
//
//	uploader := sftpdeploy.NewUploader(transport, dryRun, nil, logger)
//	summary, err := sftpdeploy.NewSyncer(uploader, "", logger).Run(ctx, manifest, "/site")
package sftpdeploy
