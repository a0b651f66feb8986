package usecase

const (
	instanceStatusSQL = "SELECT status FROM v$instance"
	databaseRoleSQL   = "SELECT database_role FROM v$database"
	listPdbsSQL       = "SELECT name FROM v$pdbs"
	pdbOpenModeSQL    = "SELECT open_mode FROM v$pdbs WHERE name = '%s'"
	seedVisibleSQL    = "SELECT COUNT(*) FROM v$pdbs WHERE name = 'PDB$SEED'"

	userExistsSQL   = "SELECT username FROM dba_users WHERE username = '%s'"
	usersInSQL      = "SELECT username FROM dba_users WHERE username IN (%s)"
	tablesMatchSQL  = "SELECT owner || '.' || table_name FROM dba_tables WHERE %s"
	createDirectory = "CREATE OR REPLACE DIRECTORY %s AS '%s'"

	// Drops any leftover account of the same name, then creates it fresh.
	createUserPLSQL = `DECLARE
  n NUMBER;
BEGIN
  SELECT COUNT(*) INTO n FROM dba_users WHERE username = '%[1]s';
  IF n > 0 THEN
    EXECUTE IMMEDIATE 'DROP USER %[1]s CASCADE';
  END IF;
  EXECUTE IMMEDIATE 'CREATE USER %[1]s IDENTIFIED BY "%[2]s" DEFAULT TABLESPACE %[3]s';
END;`

	// Kills leftover sessions of the account and drops it. ORA-01918 (no such
	// user) is swallowed so that the drop can run on every exit path.
	dropUserPLSQL = `BEGIN
  FOR s IN (SELECT sid, serial# AS serial FROM v$session WHERE username = '%[1]s') LOOP
    EXECUTE IMMEDIATE 'ALTER SYSTEM KILL SESSION ''' || s.sid || ',' || s.serial || ''' IMMEDIATE';
  END LOOP;
  EXECUTE IMMEDIATE 'DROP USER %[1]s CASCADE';
EXCEPTION
  WHEN OTHERS THEN
    IF SQLCODE != -1918 THEN
      RAISE;
    END IF;
END;`
)
