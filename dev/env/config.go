package devenv

// SampleConfig is written to dev/.state/config.json5 by the dev bootstrap.
const SampleConfig = `{
	port: 8000,
	timezone: "Australia/Sydney",
	database: { file: "<dev_state>/xero.db" },
	browser: { lock_mode: "reject" },
	paths: {
		download_dir: "<dev_state>/downloads",
		screenshot_dir: "<dev_state>/screenshots",
		selectors_file: "<dev_state>/selectors.json5",
	},
	schedule: { retention_days: 30 },
}
`
