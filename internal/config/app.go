package config

type AppConfig struct {
	Server  ServerConfig
	DB      DBConfig
	Game    GameConfig
	AutoBan AutoBanConfig
	Log     LogConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	dbCfg, err := LoadDB()
	if err != nil {
		return AppConfig{}, err
	}
	gameCfg, err := LoadGame()
	if err != nil {
		return AppConfig{}, err
	}
	autoBanCfg, err := LoadAutoBan()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server:  serverCfg,
		DB:      dbCfg,
		Game:    gameCfg,
		AutoBan: autoBanCfg,
		Log:     logCfg,
	}, nil
}
