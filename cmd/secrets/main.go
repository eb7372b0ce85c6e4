package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/betbot/copytrade/pkg/secretstore"
)

type slaveAccount struct {
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// 把 .env 中的 MASTER_API_KEY / MASTER_API_SECRET / SLAVE_ACCOUNTS 导入加密的 badger 存储，
// 之后配置文件与环境变量里可以不再保留明文凭证
func main() {
	var (
		inPath    = flag.String("in", ".env", "input .env file path")
		dbPath    = flag.String("badger", getenv("SECRET_STORE_PATH", "data/secrets.badger"), "badger secrets db path")
		secretKey = flag.String("secret-key", getenv("SECRET_STORE_KEY", ""), "badger encryption key (32 bytes base64/hex)")
		master    = flag.String("master", getenv("MASTER_NAME", "master"), "primary account name")
		list      = flag.Bool("list", false, "list stored credential keys and exit")
	)
	flag.Parse()

	keyBytes, err := secretstore.ParseKey(*secretKey)
	if err != nil {
		fatal(err)
	}
	if keyBytes == nil {
		fatal(fmt.Errorf("secret key is required: set SECRET_STORE_KEY or pass -secret-key"))
	}

	ss, err := secretstore.Open(secretstore.OpenOptions{
		Path:          *dbPath,
		EncryptionKey: keyBytes,
	})
	if err != nil {
		fatal(err)
	}
	defer ss.Close()

	if *list {
		keys, err := ss.Keys("")
		if err != nil {
			fatal(err)
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return
	}

	kv, err := godotenv.Read(*inPath)
	if err != nil {
		fatal(err)
	}

	written := 0
	if key, secret := kv["MASTER_API_KEY"], kv["MASTER_API_SECRET"]; key != "" && secret != "" {
		if err := ss.SaveCredentials(*master, true, key, secret); err != nil {
			fatal(err)
		}
		written++
	}

	if raw := strings.TrimSpace(kv["SLAVE_ACCOUNTS"]); raw != "" {
		var slaves []slaveAccount
		if err := json.Unmarshal([]byte(raw), &slaves); err != nil {
			fatal(fmt.Errorf("SLAVE_ACCOUNTS is not a valid JSON array: %w", err))
		}
		for _, s := range slaves {
			if s.Name == "" || s.APIKey == "" || s.APISecret == "" {
				fmt.Fprintf(os.Stderr, "跳过不完整的从账户: %q\n", s.Name)
				continue
			}
			if err := ss.SaveCredentials(s.Name, false, s.APIKey, s.APISecret); err != nil {
				fatal(err)
			}
			written++
		}
	}

	fmt.Fprintf(os.Stderr, "已导入 %d 组凭证到 badger：%s\n", written, *dbPath)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err.Error())
	os.Exit(1)
}
