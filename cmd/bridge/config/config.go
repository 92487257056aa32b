package config

import (
	"opcbridge/pkg/tag"
)

type Config struct {
	TagMgr   *tag.Manager
	CertFile string
	KeyFile  string
}
