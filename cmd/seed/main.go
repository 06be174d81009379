package main

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"kbase/internal/config"
	"kbase/internal/domain/models/docsystem"
	docsysSvc "kbase/internal/domain/services/docsystem"
	"kbase/internal/notify"
	"kbase/internal/repository/postgres"
	postgresDocsys "kbase/internal/repository/postgres/docsystem"
	serviceDocsys "kbase/internal/service/docsystem"
	"kbase/internal/storage/attachments"
)

func main() {
	dropTables := flag.Bool("drop-tables", false, "Drop all tables before seeding (fresh start)")
	schemaOnly := flag.Bool("schema-only", false, "Only run migrations, don't seed nodes")
	clearData := flag.BoolP("clear-data", "c", false, "Delete every node (keep schema) and exit")
	userID := flag.StringP("user", "u", "", "created_by for seeded nodes (default DEV_USER_ID)")
	verbose := flag.BoolP("verbose", "v", false, "Log service activity")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	if cfg.Environment == "prod" && (*dropTables || *clearData) {
		log.Fatalf("BLOCKED: cannot run destructive operations (--drop-tables or --clear-data) in production")
	}
	if *userID == "" {
		*userID = cfg.DevUserID
	}

	var logOut io.Writer = io.Discard
	if *verbose {
		logOut = os.Stdout
	}
	logger := config.NewLogger(cfg.Environment, logOut)

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)

	if *dropTables {
		log.Printf("Dropping tables (prefix: %s)", cfg.TablePrefix)
		if err := postgres.DropSchema(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to drop tables: %v", err)
		}
	}

	if err := postgres.RunMigrations(ctx, pool, cfg.TablePrefix); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if *schemaOnly {
		log.Println("Schema ready (schema-only mode)")
		return
	}

	if err := postgres.ClearNodes(ctx, pool, tables); err != nil {
		log.Fatalf("Failed to clear nodes: %v", err)
	}
	if *clearData {
		log.Println("Nodes cleared")
		return
	}

	repoConfig := &postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger}
	nodeRepo := postgresDocsys.NewNodeRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)
	guard := serviceDocsys.NewHierarchyGuard(nodeRepo)
	structure := serviceDocsys.NewStructureService(nodeRepo, txManager, guard, logger)
	store := serviceDocsys.NewNodeStore(nodeRepo, txManager, guard, structure,
		postgresDocsys.NoopIndexer{}, attachments.NoopCleaner{}, notify.NewSlogNotifier(logger), logger)

	created := 0
	for _, item := range seedTree() {
		n, err := plant(ctx, store, *userID, nil, item)
		if err != nil {
			log.Fatalf("Failed to seed %q: %v", item.title, err)
		}
		created += n
	}

	log.Printf("Seeding complete: %d nodes (prefix: %s)", created, cfg.TablePrefix)
}

// seedNode is a node to create together with its children
type seedNode struct {
	title    string
	content  string
	children []seedNode
	folder   bool
}

// plant creates item under parentID and recurses into its children
func plant(ctx context.Context, store docsysSvc.TreeStore, userID string, parentID *string, item seedNode) (int, error) {
	req := &docsysSvc.CreateNodeRequest{
		UserID:   userID,
		Title:    item.title,
		Kind:     docsystem.NodeKindDocument,
		ParentID: parentID,
	}
	if item.folder {
		req.Kind = docsystem.NodeKindFolder
	} else {
		req.Content = &item.content
	}

	node, err := store.Create(ctx, req)
	if err != nil {
		return 0, err
	}
	log.Printf("  created %s", node.Path)

	count := 1
	for _, child := range item.children {
		n, err := plant(ctx, store, userID, &node.ID, child)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

func seedTree() []seedNode {
	return []seedNode{
		{
			title:  "Research",
			folder: true,
			children: []seedNode{
				{
					title:  "Findings",
					folder: true,
					children: []seedNode{
						{
							title:   "Sleep and memory",
							content: "Slow-wave sleep appears to consolidate declarative memory. Participants who napped recalled more word pairs than those who stayed awake.",
						},
						{
							title:   "Spaced repetition",
							content: "Reviewing material at growing intervals beats massed practice. The spacing effect holds across ages and subjects.",
						},
					},
				},
				{
					title:   "Reading list",
					content: "Ebbinghaus on forgetting curves. Walker on sleep. Bjork on desirable difficulties.",
				},
			},
		},
		{
			title:  "Projects",
			folder: true,
			children: []seedNode{
				{
					title:   "Garden plan",
					content: "Tomatoes along the south fence, basil between them. Beans climb the north trellis.",
				},
				{
					title:  "Archive",
					folder: true,
				},
			},
		},
		{
			title:   "Inbox",
			content: "Quick notes land here before they are filed.",
		},
	}
}
