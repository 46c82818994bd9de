package system

import (
	"os/exec"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open file limit; a full preload keeps one
// descriptor per in-flight decode.
func InitResourceLimits(log zerolog.Logger) {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("could not read open file limit")
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	err = syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		log.Warn().Err(err).Msg("could not raise open file limit")
	} else {
		log.Debug().Uint64("limit", uint64(rLimit.Cur)).Msg("open file limit raised")
	}
}

const (
	minLoadConcurrency = 2
	maxLoadConcurrency = 32
	// decodeBudget is the memory reserved per in-flight decode.
	decodeBudget = 64 << 20
)

// LoadConcurrency returns how many images may decode at once on this host:
// two per logical CPU, capped by available memory.
func LoadConcurrency() int64 {
	n := int64(minLoadConcurrency)
	if cpus, err := cpu.Counts(true); err == nil && cpus > 0 {
		n = int64(cpus) * 2
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		if byMem := int64(vm.Available / decodeBudget); byMem < n {
			n = byMem
		}
	}
	return clampConcurrency(n)
}

func clampConcurrency(n int64) int64 {
	if n < minLoadConcurrency {
		return minLoadConcurrency
	}
	if n > maxLoadConcurrency {
		return maxLoadConcurrency
	}
	return n
}

func GetBestH264Encoder() (string, string) {
	// Preference order:
	// 1. MacOS (VideoToolbox)
	// 2. NVIDIA (NVENC)
	// 3. Software (libx264)

	encoders := []struct {
		name string
		args string
	}{
		{"h264_videotoolbox", ""},
		{"h264_nvenc", ""},
	}

	out, err := exec.Command("ffmpeg", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264", ""
	}
	for _, enc := range encoders {
		if strings.Contains(string(out), enc.name) {
			return enc.name, enc.args
		}
	}

	return "libx264", ""
}
