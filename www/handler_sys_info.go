package www

import (
	"net/http"
	"runtime"
	"time"
)

type SysInfo struct {
	Version   string    `json:"version"`
	StartedAt time.Time `json:"startedAt"`
	DbVersion int       `json:"dbVersion"`
	GoVersion string    `json:"goVersion"`
}

func NewSysInfoHandler(sysInfo SysInfo) http.HandlerFunc {
	if sysInfo.GoVersion == "" {
		sysInfo.GoVersion = runtime.Version()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sysInfo)
	}
}
