package server

const DefaultAddr = "127.0.0.1:7431"

type Config struct {
	HTTP   HTTPConfig
	DBPath string
}

type HTTPConfig struct {
	Addr     string
	CertFile string
	KeyFile  string
}
