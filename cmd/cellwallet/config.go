package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "cellwallet.conf"
	defaultDBFilename     = "wallet.db"
	defaultLogFilename    = "cellwallet.log"
	defaultLogDirname     = "logs"
	defaultLogLevel       = "info"
	defaultWalletID       = "default"
	defaultNetwork        = "mainnet"

	// defaultMaxLogFileSize is the size in MB a log file may grow to
	// before it is rotated.
	defaultMaxLogFileSize = 10

	// defaultMaxLogFiles is the number of rotated log files kept.
	defaultMaxLogFiles = 3
)

var (
	defaultAppDataDir = btcutil.AppDataDir("cellwallet", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir,
		defaultConfigFilename)
)

// config defines the global options shared by every command.
type config struct {
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir     string `short:"A" long:"appdata" description:"Application data directory for the wallet database and logs"`
	Network        string `long:"network" description:"The CKB network the wallet operates on" choice:"mainnet" choice:"testnet"`
	WalletID       string `short:"w" long:"wallet" description:"Id of the wallet to operate on"`
	DebugLevel     string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	LogDir         string `long:"logdir" description:"Directory to log output"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum log file size in MB before it is rotated"`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum number of rotated log files to keep"`
	FeeRate        uint64 `long:"feerate" description:"Fee rate in shannons per kilobyte; 0 uses the default rate"`
	Fee            uint64 `long:"fee" description:"Exact fee in shannons; ignored when --feerate is set"`
	MaxFeeRate     uint64 `long:"maxfeerate" description:"Fee rate in shannons per kilobyte no transaction may exceed"`

	params *netparams.Params
	dbPath string
}

func defaultConfig() config {
	return config{
		ConfigFile:     defaultConfigFile,
		AppDataDir:     defaultAppDataDir,
		Network:        defaultNetwork,
		WalletID:       defaultWalletID,
		DebugLevel:     defaultLogLevel,
		MaxLogFileSize: defaultMaxLogFileSize,
		MaxLogFiles:    defaultMaxLogFiles,
	}
}

// loadConfigFile applies the options of the config file to cfg. The
// command line is pre-parsed first to find an alternative config file or
// data directory. A missing default config file is not an error.
func loadConfigFile(parser *flags.Parser, cfg *config) error {
	preCfg := *cfg
	preParser := flags.NewParser(&preCfg, flags.IgnoreUnknown)
	if _, err := preParser.Parse(); err != nil {
		return err
	}

	configFile := preCfg.ConfigFile
	if configFile == defaultConfigFile &&
		preCfg.AppDataDir != defaultAppDataDir {

		configFile = filepath.Join(
			cleanAndExpandPath(preCfg.AppDataDir),
			defaultConfigFilename,
		)
	}

	err := flags.NewIniParser(parser).ParseFile(
		cleanAndExpandPath(configFile),
	)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) || configFile != defaultConfigFile {
			return fmt.Errorf("config file %s: %w", configFile,
				err)
		}
	}

	return nil
}

// validate checks the parsed options and fills in the derived ones.
func (c *config) validate() error {
	c.AppDataDir = cleanAndExpandPath(c.AppDataDir)
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.AppDataDir, defaultLogDirname)
	}
	c.LogDir = cleanAndExpandPath(c.LogDir)

	params, err := netparams.ForName(c.Network)
	if err != nil {
		return err
	}
	c.params = params

	// Each network gets its own database so wallets and cells never
	// cross networks.
	c.dbPath = filepath.Join(c.AppDataDir, params.Name, defaultDBFilename)

	if c.WalletID == "" {
		return errors.New("the wallet id must not be empty")
	}

	if c.MaxLogFileSize <= 0 || c.MaxLogFiles < 0 {
		return fmt.Errorf("invalid log rotation settings: size %d MB, "+
			"%d files", c.MaxLogFileSize, c.MaxLogFiles)
	}

	if c.MaxFeeRate != 0 && c.FeeRate > c.MaxFeeRate {
		return fmt.Errorf("fee rate %d exceeds the maximum %d",
			c.FeeRate, c.MaxFeeRate)
	}

	return nil
}

// feeRate returns the configured fee rate, zero when unset.
func (c *config) feeRate() ckbunit.FeeRate {
	if c.FeeRate == 0 {
		return ckbunit.FeeRate{}
	}

	return ckbunit.NewFeeRate(c.FeeRate)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory. On Windows, both forward and backward
	// slashes can be used.
	if strings.HasPrefix(path, "~") {
		var username string
		homeDir := ""

		i := strings.IndexAny(path, "/\\")
		if i == -1 {
			username = path[1:]
		} else {
			username = path[1:i]
		}

		if username == "" {
			if u, err := user.Current(); err == nil {
				homeDir = u.HomeDir
			}
		} else if u, err := user.Lookup(username); err == nil {
			homeDir = u.HomeDir
		}

		if homeDir != "" {
			if i == -1 {
				path = homeDir
			} else {
				path = homeDir + path[i:]
			}
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
