package config

import (
	"os"
	"strconv"
)

const DATABASE_TYPE = "DCR_DATABASE_TYPE"
const DATABASE_URL = "DCR_DATABASE_URL"
const DATABASE_SQLLITE_FILE_NAME = "DCR_DATABASE_SQLLITE_FILE_NAME"
const SERVER_WEB_PORT = "DCR_SERVER_WEB_PORT"
const LEDGER_ACCOUNT = "DCR_LEDGER_ACCOUNT"                 //account identity used for ledger writes
const RECENT_WORKFLOWS_LIMIT = "DCR_RECENT_WORKFLOWS_LIMIT" //how many entries the recent list keeps
const SEED_DEMO_WORKFLOW = "DCR_SEED_DEMO_WORKFLOW"         //seed the support ticket demo graph on startup

const DATABASE_TYPE_POSTGRES = "POSTGRES"
const DATABASE_TYPE_MYSQL = "MYSQL"
const DATABASE_TYPE_SQLLITE = "SQLLITE"

func GetSystemSettingInteger(settingKey string) int {
	val := GetSystemSettingString(settingKey)
	if val != "" {
		intValue, _ := strconv.Atoi(val)
		return intValue
	}
	return 0
}

func GetSystemSettingString(settingKey string) string {
	val := os.Getenv(settingKey)
	if val != "" {
		return val
	}
	if settingKey == SERVER_WEB_PORT {
		return "8080"
	}
	if settingKey == RECENT_WORKFLOWS_LIMIT {
		return "10"
	}
	if settingKey == LEDGER_ACCOUNT {
		return "0x50b6d21bf2a1f0ca47288672cd4b4540592b4cc8"
	}
	if settingKey == SEED_DEMO_WORKFLOW {
		return "true"
	}
	if settingKey == DATABASE_SQLLITE_FILE_NAME {
		return "./dcrflow.db"
	}
	return ""
}
