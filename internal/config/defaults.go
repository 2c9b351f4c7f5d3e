package config

const (
	defaultDataDir            = "~/.local/share/loom"
	defaultLogDir             = "~/.local/share/loom/logs"
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
	defaultTickSeconds        = 3600
	defaultMaxConcurrent      = 4
	defaultResetWindowMinutes = 5
	defaultCostPerVideoCents  = 32
	defaultScriptCandidates   = 3
	defaultSelection          = "first"
	defaultSubmitAttempts     = 3
	defaultTotalSeconds       = 25
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds  = 60
	defaultRenderBaseURL      = "https://api.kie.ai/api/v1"
	defaultSubmitTimeout      = 30
	defaultPollInterval       = 10
	defaultPollBudgetMinutes  = 20
	defaultPollMaxTransient   = 6
	defaultPollRatePerSecond  = 5.0
	defaultUploadTimeout      = 120
	defaultCaptionModel       = "claude-haiku-4-5"
	defaultPublishTimeout     = 60
	defaultNtfyTimeout        = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Scheduler: Scheduler{
			TickSeconds:        defaultTickSeconds,
			MaxConcurrent:      defaultMaxConcurrent,
			ResetWindowMinutes: defaultResetWindowMinutes,
		},
		Production: Production{
			CostPerVideoCents: defaultCostPerVideoCents,
			ScriptCandidates:  defaultScriptCandidates,
			Selection:         defaultSelection,
			SubmitAttempts:    defaultSubmitAttempts,
			TotalSeconds:      defaultTotalSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Render: Render{
			BaseURL:              defaultRenderBaseURL,
			SubmitTimeoutSeconds: defaultSubmitTimeout,
		},
		Poller: Poller{
			IntervalSeconds: defaultPollInterval,
			BudgetMinutes:   defaultPollBudgetMinutes,
			MaxTransient:    defaultPollMaxTransient,
			RatePerSecond:   defaultPollRatePerSecond,
		},
		Storage: Storage{
			UploadTimeoutSeconds: defaultUploadTimeout,
		},
		Publish: Publish{
			Enabled:        true,
			CaptionModel:   defaultCaptionModel,
			TimeoutSeconds: defaultPublishTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			Production:     true,
			Budget:         true,
			Errors:         true,
		},
	}
}
