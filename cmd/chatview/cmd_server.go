package chatview

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sjzar/chatview/internal/chatview"
)

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&serverConfig, "config", "c", "", "config file path")
	serverCmd.Flags().StringVarP(&serverAddr, "addr", "a", "", "server address")
	serverCmd.Flags().StringVarP(&serverDataDir, "data-dir", "d", "", "data dir")
	serverCmd.Flags().StringVarP(&serverWorkDir, "work-dir", "w", "", "work dir")
	serverCmd.Flags().StringVar(&serverSelfID, "self-id", "", "account id of the store owner")
	serverCmd.Flags().StringVar(&serverImgKey, "img-key", "", "image decryption key, 32 hex chars")
	serverCmd.Flags().StringVar(&serverConverter, "converter", "", "external image converter path")
	serverCmd.Flags().StringVar(&serverRecognizer, "recognizer", "", "speech recognizer command")
}

var (
	serverConfig     string
	serverAddr       string
	serverDataDir    string
	serverWorkDir    string
	serverSelfID     string
	serverImgKey     string
	serverConverter  string
	serverRecognizer string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cmdConf := map[string]any{}
		if serverAddr != "" {
			cmdConf["http_addr"] = serverAddr
		}
		if serverDataDir != "" {
			cmdConf["data_dir"] = serverDataDir
		}
		if serverWorkDir != "" {
			cmdConf["work_dir"] = serverWorkDir
		}
		if serverSelfID != "" {
			cmdConf["self_id"] = serverSelfID
		}
		if serverImgKey != "" {
			cmdConf["img_key"] = serverImgKey
		}
		if serverConverter != "" {
			cmdConf["converter_path"] = serverConverter
		}
		if serverRecognizer != "" {
			cmdConf["recognizer_cmd"] = serverRecognizer
		}
		if Debug {
			cmdConf["debug"] = true
		}

		m := chatview.New()
		if err := m.CommandServer(serverConfig, cmdConf); err != nil {
			log.Err(err).Msg("failed to start server")
			return
		}
	},
}
