// Package gen synchronizes generated artifacts with SQL schema sources.
//
// # Architecture
//
// A change of a source file flows through the Pipeline:
//
//	Tables/*.sql              Stored Procedures/*.sql
//	     ↓                            ↓
//	ParseTable (cached)        ParseProcedure + owning table
//	     ↓                            ↓
//	ModelSync                  RepositorySync ──┐
//	ScriptSync ─→ ManifestSync RepositoryInterfaceSync
//	                           ServiceSync ─────┤
//	                           ServiceInterfaceSync
//	                           ForeignServiceSync ┴→ RegistrySync
//
// Client models (*.ts) are handled by ClientSync.
//
// # Merging
//
// Go artifacts are rendered with Jennifer, split into declarations and
// merged into the existing file member by member (see package
// compiler/source). Declarations the generator does not own are never
// touched, and a file whose bytes would not change is not written. Deletes
// remove the members of one procedure, the type once no exported method is
// left, and the file once it declares nothing.
//
// Every read-modify-write of a file happens under the lock of its path, and
// writes go through a temporary file that is renamed into place.
//
// # Layout
//
// For schema dbo and table Customer, with the default configuration:
//
//	internal/dbo/model/customer.go
//	internal/dbo/repository/customer_repository.go
//	internal/dbo/repository/customer_repository_sql.go
//	internal/dbo/service/customer_service.go
//	internal/dbo/service/customer_service_default.go
//	internal/dbo/service/customer_foreign_service.go
//	internal/dbo/registry/registry.go
//	database/dbo/Stored Procedures/zgen_Customer_*.sql
//	database/dbo/User Defined Types/CustomerTableType.sql
//	database/zgen.manifest.yaml
//	web/src/data/customer.data.ts
package gen
