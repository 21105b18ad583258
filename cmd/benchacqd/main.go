package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	sysctl "github.com/lorenzosaino/go-sysctl"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/benchlab/benchacq"
	"github.com/benchlab/benchacq/internal/benchdb"
)

var githash = "githash not computed"
var gitdate = "git date not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err2 := os.MkdirAll(dir, 0775); err2 != nil {
			return "", err2
		}
	}

	// Create an empty file dir/filename, if it doesn't exist.
	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper sets up the viper configuration manager: says where to find
// config files and the filename and suffix. Sets some defaults.
func setupViper() error {
	viper.SetDefault("verbose", false)
	viper.SetDefault("portbase", 5530)
	viper.SetDefault("samplelimit", 0)
	viper.SetDefault("db.enabled", false)
	viper.SetDefault("db.addr", "localhost:9000")
	viper.SetDefault("demo.devices", []string{"psu", "load", "dmm"})

	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Error finding User Home Dir: %s\n", err)
	}
	dotBenchacq := filepath.Join(home, ".benchacq")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotBenchacq, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/benchacq"))
	viper.AddConfigPath(dotBenchacq)
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	probFile, err := os.OpenFile(pfname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("Could not open log file '%s'", pfname))
	}
	probLogger := log.New(probFile, "", log.LstdFlags)
	probLogger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	})
	return probLogger
}

// checkSocketBuffers warns when the kernel receive buffer limit is too
// small for network-attached instruments streaming at full rate.
func checkSocketBuffers() {
	const want = 1 << 21
	val, err := sysctl.Get("net.core.rmem_max")
	if err != nil {
		return // not Linux, or no procfs; nothing to check
	}
	if rmem, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && rmem < want {
		fmt.Printf("Warning: net.core.rmem_max = %d; network-attached instruments may drop frames below %d\n",
			rmem, want)
	}
}

func buildDemoDevices(session *benchacq.DemoSession, manager *benchacq.DeviceManager) error {
	sampleLimit := viper.GetInt("samplelimit")
	for _, kind := range viper.GetStringSlice("demo.devices") {
		var dev *benchacq.DemoDevice
		switch strings.ToLower(kind) {
		case "psu":
			dev = benchacq.NewDemoPowerSupply()
		case "load":
			dev = benchacq.NewDemoLoad()
		case "dmm":
			dev = benchacq.NewDemoMultimeter()
		default:
			return fmt.Errorf("demo device kind %q is not recognized (want psu, load or dmm)", kind)
		}
		ds, err := benchacq.NewDeviceSession(session, dev)
		if err != nil {
			return err
		}
		if sampleLimit > 0 {
			ds.SetSampleLimit(sampleLimit)
		}
		manager.Add(ds)
		fmt.Printf("Prepared %s\n", ds.DisplayName(manager))
	}
	return nil
}

func runHTTPServer(manager *benchacq.DeviceManager, port int) {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		type status struct {
			Version string
			Uptime  string
			Devices []string
		}
		st := status{Version: benchacq.Build.Version, Uptime: time.Since(benchacq.StartTime).String()}
		for _, ds := range manager.Devices() {
			st.Devices = append(st.Devices, ds.DisplayName(manager))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}).Methods(http.MethodGet)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), router); err != nil {
		benchacq.ProblemLogger.Printf("HTTP server stopped: %v\n", err)
	}
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	benchacq.Build.Date = buildDate
	benchacq.Build.Githash = githash
	benchacq.Build.Gitdate = gitdate
	benchacq.Build.Summary = fmt.Sprintf("benchacq version %s (git commit %s of %s)", benchacq.Build.Version, githash, gitdate)
	if host, err := os.Hostname(); err == nil {
		benchacq.Build.Host = host
	} else {
		benchacq.Build.Host = "host not detected"
	}

	printVersion := flag.Bool("version", false, "print version and quit")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to given file")
	memprofile := flag.String("memprofile", "", "write memory profile to given file")
	flag.Parse()

	if *printVersion {
		fmt.Printf("This is benchacqd version %s\n", benchacq.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		fmt.Printf("Running on %d CPUs.\n", runtime.NumCPU())
		os.Exit(0)
	}

	banner := fmt.Sprintf("\nThis is benchacqd version %s (git commit %s)\n", benchacq.Build.Version, githash)
	fmt.Print(banner)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(home, ".benchacq", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	benchacq.ProblemLogger = startLogger(problemname)
	benchacq.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems       to %s\n", problemname)
	fmt.Printf("Logging client updates to %s\n\n", logname)
	benchacq.UpdateLogger.Printf("\n\n\n\n%s", banner)

	// Find config file, creating it if needed, and read it.
	if err := setupViper(); err != nil {
		panic(err)
	}
	benchacq.SetPortnumbers(viper.GetInt("portbase"))
	if viper.GetBool("verbose") {
		benchacq.SetVerbosity(2)
	}

	checkSocketBuffers()

	// Record this daemon run in the database, if one is configured.
	abort := make(chan struct{})
	recorder := benchdb.DummyConnection()
	if viper.GetBool("db.enabled") {
		activity := &benchdb.ActivityMessage{
			ID:        benchdb.NewID(),
			Hostname:  benchacq.Build.Host,
			Githash:   githash,
			Version:   benchacq.Build.Version,
			GoVersion: runtime.Version(),
			Start:     benchacq.StartTime,
		}
		recorder = benchdb.StartConnection(viper.GetString("db.addr"), activity, abort)
	}

	drvSession := benchacq.NewDemoSession()
	manager := benchacq.NewDeviceManager()
	if err := buildDemoDevices(drvSession, manager); err != nil {
		panic(err)
	}

	go benchacq.RunClientUpdater(benchacq.Ports.Status, abort)
	go runHTTPServer(manager, benchacq.Ports.HTTP)

	control := benchacq.NewSessionControl(manager, recorder)
	benchacq.RunRPCServer(control, benchacq.Ports.RPC)
	manager.CloseAll()
	close(abort)
	writeMemoryProfile(memprofile)
}

// writeMemoryProfile writes the memory use profile to the indicated file.
// If memprofile points to an empty string, do not write.
func writeMemoryProfile(memprofile *string) {
	if *memprofile == "" {
		return
	}
	f, err := os.Create(*memprofile)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	defer f.Close()
	runtime.GC() // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}
