package main

import (
	"fmt"

	"github.com/helixml/vidchat/infrastructure/provider"
	"github.com/spf13/cobra"
)

func downloadModelCmd() *cobra.Command {
	var (
		envFile string
		dest    string
	)

	cmd := &cobra.Command{
		Use:   "download-model",
		Short: "Download the local embedding model",
		Long: `Download the ONNX export of ` + provider.LocalModelRepository + ` into the
models directory under DATA_DIR. The model is used whenever no
EMBEDDING_ENDPOINT_MODEL is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dest == "" {
				cfg, err := loadConfig(envFile)
				if err != nil {
					return err
				}
				dest = cfg.ModelsDir()
			}

			fmt.Printf("Downloading %s to %s...\n", provider.LocalModelRepository, dest)
			path, err := provider.DownloadLocalModel(dest)
			if err != nil {
				return err
			}
			fmt.Printf("Model downloaded to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file")
	cmd.Flags().StringVar(&dest, "dest", "", "Target directory (default: {data_dir}/models)")

	return cmd
}
