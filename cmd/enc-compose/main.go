// Command enc-compose runs the S-57 ENC chart-compose pipeline: ingest,
// dedup, partition, fan out to the tile generator, tree-merge, validate,
// and publish.
package main

import "github.com/xnautical/enc-compose/internal/cmd"

func main() {
	cmd.Execute()
}
