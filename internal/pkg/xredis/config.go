package xredis

type Config struct {
	Addr                  string `conf:"addr" yaml:"addr" json:"addr"`
	URL                   string `conf:"url" yaml:"url" json:"url"`
	Username              string `conf:"username" yaml:"username" json:"username"`
	Password              string `conf:"password" yaml:"password" json:"-"`
	DB                    *int   `conf:"db" yaml:"db" json:"db"`
	TLS                   bool   `conf:"tls" yaml:"tls" json:"tls"`
	TLSInsecureSkipVerify bool   `conf:"tls_insecure_skip_verify" yaml:"tls_insecure_skip_verify" json:"tls_insecure_skip_verify"`
}

// Configured reports whether an address or url is set.
func (c Config) Configured() bool {
	return c.Addr != "" || c.URL != ""
}
