/*
Package config manages configuration loading and validation for bridgerc.

	            +-------------+
	            |   Config    |
	            +------+------+
	                   |
	   +-------+-------+-------+-------+
	   |       |       |       |       |
	+--+--+ +--+--+ +--+---+ +-+---+ +-+----+
	| YAML| | HCL | | TOML | |JSON | | env  |
	+-----+ +-----+ +------+ +-----+ +------+

🎯 Purpose:
- One root Config shared by every command
- Format detection by file extension
- ${VAR} credential expansion from the environment
- Defaults and hard validation in one place

🔄 Flow:
1. Load reads the file and expands ${VAR} references
2. The registered parser for the extension decodes it
3. Validate applies defaults and rejects incomplete jobs

📝 Job semantics:
Each job block names a source directory on the remote store, a transform
mode (single, combine, reshape), a destination (sharepoint or remote) with
production and debug folders, and an archive policy (always, when_done,
never) for destination reconciliation.

🔍 Example:

	app:
	  timezone: Europe/Helsinki

	remote:
	  host: sftp.example.com
	  username: siirto
	  password: ${SFTP_PASSWORD}

	sharepoint:
	  tenant_id: ${SP_TENANT_ID}
	  client_id: ${SP_CLIENT_ID}
	  client_secret: ${SP_CLIENT_SECRET}
	  site_url: https://example.sharepoint.com/sites/vingo
	  drive_name: Vingo Kyselyt

	jobs:
	  - name: vantaa-liitteet
	    schedule: "0 0 5 * * *"
	    source_dir: JANNE/vantaa_tallenna_liite
	    destination:
	      kind: sharepoint
	      folder: 002 Vantaa
	      debug_folder: Testi
	  - name: kontrolli-pks
	    schedule: "0 0 4 * * *"
	    source_dir: KONTROLLI/PKS
	    transform: combine
	    destination:
	      kind: sharepoint
	      folder: 002 Vantaa
	      debug_folder: Testi
	    archive:
	      policy: when_done
	  - name: kaatopaikat
	    schedule: "0 0 4 * * *"
	    source_dir: jhl_vastaanottopaikat/RAW-DATA
	    transform: reshape
	    destination:
	      kind: remote
	      folder: ../PROCESSED
	      output_name: KAATOPAIKAT.csv
*/
package config
