package main

import (
	"context"

	"github.com/trezcool/autograder/storage/database"
)

var (
	gooseRunFunc = database.Migrate          // mockable
	createDBFunc = database.CreateIfNotExist // mockable
)

func (cli *commandLine) migrate(args []string) error {
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(cli.db, args[0], arguments...)
}

func (cli *commandLine) createDB() error {
	return createDBFunc(context.Background(), cli.conf)
}
