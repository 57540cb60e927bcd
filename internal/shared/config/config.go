package config

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"
	"liuproxy_checker/internal/shared/types"
)

// LoadIni 加载 checker.ini 行为配置文件。
// 文件中缺失的键保留 cfg 中已有的值, 因此调用方通常传入 types.DefaultConfig()。
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	ApplyEnv(cfg)
	return nil
}

// ApplyEnv 使用环境变量覆盖部分配置项。
func ApplyEnv(cfg *types.Config) {
	overrideFromEnvInt(&cfg.CheckerConf.Concurrency, "CHECKER_CONCURRENCY")
	overrideFromEnvString(&cfg.CheckerConf.ProbeTarget, "CHECKER_PROBE_TARGET")
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}
