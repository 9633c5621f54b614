// Package config loads orchestra configuration and plan files.
//
// Configuration is read from YAML (or any format viper understands),
// overridden by ORCHESTRA_ prefixed environment variables, and validated with
// go-playground/validator. A .env file is loaded first when present so API
// keys can live outside the config file. Plans are separate YAML documents
// decoded with gopkg.in/yaml.v3.
package config
