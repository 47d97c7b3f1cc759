package config

const (
	defaultWorkDir             = "~/.local/share/digestcast/work"
	defaultStateDir            = "~/.local/share/digestcast"
	defaultLogDir              = "~/.local/share/digestcast/logs"
	defaultStateDriver         = "sqlite"
	defaultLookbackHours       = 24
	defaultMailboxBackend      = "gmail"
	defaultMailboxConcurrency  = 4
	defaultMailRetryAttempts   = 3
	defaultMailRetryBackoff    = 2
	defaultGmailCredentials    = "~/.config/digestcast/credentials.json"
	defaultGmailToken          = "~/.config/digestcast/token.json"
	defaultGmailUser           = "me"
	defaultIMAPPort            = 993
	defaultPOP3Port            = 995
	defaultIMAPFolder          = "INBOX"
	defaultSynthEngine         = "command"
	defaultSynthMaxChars       = 250
	defaultSynthWorkers        = 1
	defaultSynthLanguage       = "en"
	defaultSynthCommand        = "piper"
	defaultSynthModel          = "tts-1"
	defaultSynthVoice          = "alloy"
	defaultSynthTimeoutSeconds = 300
	defaultSynthRetryAttempts  = 2
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultAudioBitrate        = "64k"
	defaultAudioSampleRate     = 24000
	defaultSupabaseBucket      = "audiobooks"
	defaultSupabaseTable       = "audiobooks"
	defaultSourcesTable        = "sources"
	defaultUploadBackend       = "webapi"
	defaultUploadTimeout       = 300
	defaultUploadRetryAttempts = 5
	defaultUploadRetryBackoff  = 10
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	secretPrefix = "keyring:"
)

// piper reads the text on stdin when no argument references {text_file}.
var defaultSynthArgs = []string{"--model", "en_US-lessac-medium", "--output_file", "{output}"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Sources: Sources{
			Remote: "none",
			Table:  defaultSourcesTable,
		},
		State: State{
			Driver:        defaultStateDriver,
			LookbackHours: defaultLookbackHours,
		},
		Mailbox: Mailbox{
			Backend:             defaultMailboxBackend,
			Concurrency:         defaultMailboxConcurrency,
			RetryAttempts:       defaultMailRetryAttempts,
			RetryBackoffSeconds: defaultMailRetryBackoff,
			Gmail: Gmail{
				CredentialsPath: defaultGmailCredentials,
				TokenPath:       defaultGmailToken,
				User:            defaultGmailUser,
			},
			IMAP: MailServer{Port: defaultIMAPPort, TLS: true, Folder: defaultIMAPFolder},
			POP3: MailServer{Port: defaultPOP3Port, TLS: true},
		},
		Extract: Extract{
			Readability: false,
			Intro:       true,
		},
		Synth: Synth{
			Engine:         defaultSynthEngine,
			MaxChars:       defaultSynthMaxChars,
			Workers:        defaultSynthWorkers,
			Language:       defaultSynthLanguage,
			Command:        defaultSynthCommand,
			Args:           append([]string(nil), defaultSynthArgs...),
			Model:          defaultSynthModel,
			Voice:          defaultSynthVoice,
			TimeoutSeconds: defaultSynthTimeoutSeconds,
			RetryAttempts:  defaultSynthRetryAttempts,
		},
		Audio: Audio{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Bitrate:       defaultAudioBitrate,
			SampleRate:    defaultAudioSampleRate,
		},
		Supabase: Supabase{
			Bucket: defaultSupabaseBucket,
			Table:  defaultSupabaseTable,
		},
		Upload: Upload{
			Backend:             defaultUploadBackend,
			TimeoutSeconds:      defaultUploadTimeout,
			RetryAttempts:       defaultUploadRetryAttempts,
			RetryBackoffSeconds: defaultUploadRetryBackoff,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
