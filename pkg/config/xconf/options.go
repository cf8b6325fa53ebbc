package xconf

// DefaultEnvPrefix 默认环境变量前缀。
const DefaultEnvPrefix = "XDELAY_"

// Options 加载选项。
type Options struct {
	// Delim 键分隔符，默认 "."。
	Delim string

	// Tag 结构体标签名，默认 "koanf"。
	Tag string

	// EnvPrefix 环境变量前缀，为空时不读取环境变量。
	EnvPrefix string
}

// Option 加载选项函数。
type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Delim:     ".",
		Tag:       "koanf",
		EnvPrefix: DefaultEnvPrefix,
	}
}

// WithDelim 设置键分隔符。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithEnvPrefix 设置环境变量前缀，传空串关闭环境变量覆盖。
func WithEnvPrefix(prefix string) Option {
	return func(o *Options) {
		o.EnvPrefix = prefix
	}
}
