package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `json:"port"`
	DBDriver string `json:"dbDriver"`
	DSN      string `json:"databaseUrl"`

	BcryptCost         int   `json:"bcryptCost"`
	SignupPoints       int64 `json:"signupPoints"`
	LoginDefaultPoints int64 `json:"loginDefaultPoints"`
	AdminRequiresRole  bool  `json:"adminRequiresRole"`

	// client side
	LedgerURL   string  `json:"ledgerUrl"`
	TaxRate     float64 `json:"taxRate"`
	DeliveryFee float64 `json:"deliveryFee"`
	RefundQueue int     `json:"refundQueue"`
}

const DefaultPath = "./loyalty_config.json"

func defaults() Config {
	return Config{
		Port:               "5000",
		DBDriver:           "mysql",
		DSN:                "root:password@tcp(localhost:3306)/restaurant?parseTime=true",
		BcryptCost:         10,
		LoginDefaultPoints: 150,
		LedgerURL:          "http://localhost:5000",
		TaxRate:            0.13,
		DeliveryFee:        5.00,
		RefundQueue:        64,
	}
}

// Load reads the optional JSON file at path, then .env, then the process
// environment. Later sources win; zero values fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Config{}

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return Config{}, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"PORT":         &c.Port,
		"DB_DRIVER":    &c.DBDriver,
		"DATABASE_URL": &c.DSN,
		"LEDGER_URL":   &c.LedgerURL,
	}
	for k, p := range str {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			*p = v
		}
	}

	if v, ok := os.LookupEnv("BCRYPT_SALT_ROUNDS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BCRYPT_SALT_ROUNDS: %w", err)
		}
		c.BcryptCost = n
	}
	ints := map[string]*int64{
		"SIGNUP_POINTS":        &c.SignupPoints,
		"LOGIN_DEFAULT_POINTS": &c.LoginDefaultPoints,
	}
	for k, p := range ints {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*p = n
		}
	}
	floats := map[string]*float64{
		"TAX_RATE":     &c.TaxRate,
		"DELIVERY_FEE": &c.DeliveryFee,
	}
	for k, p := range floats {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			*p = f
		}
	}
	if v, ok := os.LookupEnv("ADMIN_REQUIRES_ROLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ADMIN_REQUIRES_ROLE: %w", err)
		}
		c.AdminRequiresRole = b
	}
	return nil
}

func (c *Config) fillDefaults() {
	d := defaults()
	if c.Port == "" {
		c.Port = d.Port
	}
	if c.DBDriver == "" {
		c.DBDriver = d.DBDriver
	}
	if c.DSN == "" {
		c.DSN = d.DSN
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = d.BcryptCost
	}
	if c.LoginDefaultPoints == 0 {
		c.LoginDefaultPoints = d.LoginDefaultPoints
	}
	if c.LedgerURL == "" {
		c.LedgerURL = d.LedgerURL
	}
	if c.TaxRate == 0 {
		c.TaxRate = d.TaxRate
	}
	if c.DeliveryFee == 0 {
		c.DeliveryFee = d.DeliveryFee
	}
	if c.RefundQueue == 0 {
		c.RefundQueue = d.RefundQueue
	}
}
